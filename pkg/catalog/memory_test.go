package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preuvely/storematch/pkg/models"
)

func strPtr(s string) *string { return &s }

func seed() *Memory {
	return NewMemory(
		models.Store{ID: "s1", Name: "Amazon Store", Slug: "amazon-store", Status: models.StoreStatusActive, Links: []models.Link{
			{ID: "l1", StoreID: "s1", Platform: models.PlatformInstagram, URL: "https://instagram.com/amazon", Handle: strPtr("amazon")},
		}},
		models.Store{ID: "s2", Name: "Zara", Slug: "zara", Status: models.StoreStatusSuspended, Links: []models.Link{
			{ID: "l2", StoreID: "s2", Platform: models.PlatformInstagram, URL: "https://instagram.com/zara", Handle: strPtr("zara")},
		}},
		models.Store{ID: "s3", Name: "Boutique Doum", Slug: "boutique-doum", Status: models.StoreStatusActive},
	)
}

func TestListActive(t *testing.T) {
	m := seed()

	stores, err := m.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, stores, 2)
	assert.Equal(t, "s1", stores[0].ID)
	assert.Equal(t, "s3", stores[1].ID)

	// callers get copies
	stores[0].Links[0].URL = "changed"
	again, err := m.ListActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://instagram.com/amazon", again[0].Links[0].URL)
}

func TestFindActiveByLink(t *testing.T) {
	m := seed()
	instagram := models.PlatformInstagram

	stores, err := m.FindActiveByLink(context.Background(), models.LinkFilter{Platform: &instagram, Handle: "amazon"})
	require.NoError(t, err)
	require.Len(t, stores, 1)
	assert.Equal(t, "s1", stores[0].ID)

	stores, err = m.FindActiveByLink(context.Background(), models.LinkFilter{Handle: "zara"})
	require.NoError(t, err)
	assert.Empty(t, stores)

	stores, err = m.FindActiveByLink(context.Background(), models.LinkFilter{})
	require.NoError(t, err)
	assert.NotNil(t, stores)
	assert.Empty(t, stores)
}

func TestCanceledContext(t *testing.T) {
	m := seed()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.ListActive(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = m.FindActiveByLink(ctx, models.LinkFilter{Handle: "amazon"})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = m.Create(ctx, models.CreateStoreRequest{Name: "New"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, m.Count())
}

func TestCreateAndGetByID(t *testing.T) {
	m := seed()

	created, err := m.Create(context.Background(), models.CreateStoreRequest{
		Name:   "New Store",
		Slug:   "new-store",
		Status: models.StoreStatusPending,
		Links: []models.LinkInput{
			{URL: " https://newstore.dz ", Platform: "WEBSITE"},
			{Handle: " newstore ", Platform: "instagram"},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	require.Len(t, created.Links, 2)
	assert.Equal(t, "https://newstore.dz", created.Links[0].URL)
	assert.Equal(t, models.PlatformWebsite, created.Links[0].Platform)
	assert.Equal(t, created.ID, created.Links[1].StoreID)
	assert.Equal(t, "newstore", *created.Links[1].Handle)

	found, err := m.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "New Store", found.Name)

	// pending stores are never duplicate candidates
	active, err := m.ListActive(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 2)

	missing, err := m.GetByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPutRemoveAndSlugExists(t *testing.T) {
	m := seed()
	ctx := context.Background()

	m.Put(models.Store{ID: "s2", Name: "Zara", Slug: "zara", Status: models.StoreStatusActive})
	active, err := m.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 3)

	exists, err := m.SlugExists(ctx, "zara")
	require.NoError(t, err)
	assert.True(t, exists)

	m.Remove("s2")
	assert.Equal(t, 2, m.Count())

	exists, err = m.SlugExists(ctx, "zara")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFindPending(t *testing.T) {
	m := seed()
	ctx := context.Background()

	created, err := m.Create(ctx, models.CreateStoreRequest{
		Name:           "Zara Oran",
		NormalizedName: "zaraoran",
		Slug:           "zara-oran",
		Status:         models.StoreStatusPending,
		Links:          []models.LinkInput{{Handle: "@Zara.Oran", Platform: "instagram"}},
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter models.PendingFilter
		found  bool
	}{
		{name: "same normalized name", filter: models.PendingFilter{NormalizedName: "zaraoran"}, found: true},
		{name: "same normalized handle", filter: models.PendingFilter{Handles: []string{"zaraoran"}}, found: true},
		{name: "active store handle ignored", filter: models.PendingFilter{Handles: []string{"amazon"}}},
		{name: "different name", filter: models.PendingFilter{NormalizedName: "zara"}},
		{name: "empty filter", filter: models.PendingFilter{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stores, err := m.FindPending(ctx, tt.filter)
			require.NoError(t, err)
			if !tt.found {
				assert.Empty(t, stores)
				return
			}
			require.Len(t, stores, 1)
			assert.Equal(t, created.ID, stores[0].ID)
		})
	}
}
