package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preuvely/storematch/pkg/database"
	"github.com/preuvely/storematch/pkg/models"
)

func newTestRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	instance := database.NewDatabaseInstance(sqlx.NewDb(db, "postgres"), logger)
	return NewRepository(instance, logger), mock
}

func storeRows() *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"id", "name", "slug", "status", "is_verified", "avg_rating", "reviews_count", "created_at", "updated_at"}).
		AddRow("s1", "Amazon Store", "amazon-store", "active", true, 4.5, 12, now, now).
		AddRow("s2", "Boutique Doum", "boutique-doum", "active", false, 0.0, 0, now, now)
}

func TestListActiveLoadsLinks(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectQuery(`SELECT s\.id, .* FROM stores s WHERE s\.status = \$1 ORDER BY s\.created_at, s\.id ASC`).
		WithArgs("active").
		WillReturnRows(storeRows())
	mock.ExpectQuery(`SELECT id, store_id, platform, url, handle FROM store_links WHERE store_id = ANY\(\$1\)`).
		WithArgs(pq.Array([]string{"s1", "s2"})).
		WillReturnRows(sqlmock.NewRows(linkColumns).
			AddRow("l1", "s2", "instagram", "https://instagram.com/doum", "doum").
			AddRow("l2", "s2", "website", "https://doum.dz", nil))

	stores, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, stores, 2)

	assert.Equal(t, "Amazon Store", stores[0].Name)
	assert.Empty(t, stores[0].Links)
	require.Len(t, stores[1].Links, 2)
	assert.Equal(t, models.PlatformInstagram, stores[1].Links[0].Platform)
	require.NotNil(t, stores[1].Links[0].Handle)
	assert.Equal(t, "doum", *stores[1].Links[0].Handle)
	assert.Nil(t, stores[1].Links[1].Handle)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkQueryBindsIDsAsOneArray(t *testing.T) {
	repo, mock := newTestRepository(t)

	// more stores than PostgreSQL accepts bind parameters
	const count = 70000
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "name", "slug", "status", "is_verified", "avg_rating", "reviews_count", "created_at", "updated_at"})
	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		id := fmt.Sprintf("s%d", i)
		ids = append(ids, id)
		rows.AddRow(id, "Store "+id, id, "active", false, 0.0, 0, now, now)
	}

	mock.ExpectQuery(`FROM stores s WHERE s\.status = \$1`).
		WithArgs("active").
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT id, store_id, platform, url, handle FROM store_links WHERE store_id = ANY\(\$1\) ORDER BY created_at, id ASC`).
		WithArgs(pq.Array(ids)).
		WillReturnRows(sqlmock.NewRows(linkColumns).
			AddRow("l1", "s69999", "website", "https://last.dz", nil))

	stores, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, stores, count)
	require.Len(t, stores[count-1].Links, 1)
	assert.Equal(t, "https://last.dz", stores[count-1].Links[0].URL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindPending(t *testing.T) {
	tests := []struct {
		name    string
		filter  models.PendingFilter
		pattern string
		args    []driver.Value
	}{
		{
			name:    "name and handles",
			filter:  models.PendingFilter{NormalizedName: "zaraoran", Handles: []string{"zaraoran", "zara"}},
			pattern: `WHERE s\.status = \$1 AND \(s\.normalized_name = \$2 OR EXISTS \(SELECT 1 FROM store_links l WHERE l\.store_id = s\.id AND REPLACE\(.*\) = ANY\(\$3\)\)\)`,
			args:    []driver.Value{"pending", "zaraoran", `{"zaraoran","zara"}`},
		},
		{
			name:    "name only",
			filter:  models.PendingFilter{NormalizedName: "zaraoran"},
			pattern: `WHERE s\.status = \$1 AND \(s\.normalized_name = \$2\)`,
			args:    []driver.Value{"pending", "zaraoran"},
		},
		{
			name:    "handles only",
			filter:  models.PendingFilter{Handles: []string{"same"}},
			pattern: `WHERE s\.status = \$1 AND \(EXISTS \(SELECT 1 FROM store_links l WHERE l\.store_id = s\.id AND REPLACE\(.*\) = ANY\(\$2\)\)\)`,
			args:    []driver.Value{"pending", `{"same"}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newTestRepository(t)

			mock.ExpectQuery(tt.pattern).
				WithArgs(tt.args...).
				WillReturnRows(storeRows())
			mock.ExpectQuery(`FROM store_links WHERE store_id = ANY`).
				WillReturnRows(sqlmock.NewRows(linkColumns))

			stores, err := repo.FindPending(context.Background(), tt.filter)
			require.NoError(t, err)
			assert.Len(t, stores, 2)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestFindPendingEmptyFilter(t *testing.T) {
	repo, mock := newTestRepository(t)

	stores, err := repo.FindPending(context.Background(), models.PendingFilter{})
	require.NoError(t, err)
	assert.Empty(t, stores)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListActiveEmptySkipsLinkQuery(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectQuery(`FROM stores s WHERE s\.status = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	stores, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, stores)
	assert.Empty(t, stores)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListActivePropagatesErrors(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectQuery(`FROM stores s`).WillReturnError(errors.New("connection reset"))

	_, err := repo.ListActive(context.Background())
	require.Error(t, err)
	assert.True(t, httperror.IsHTTPError(err))
	assert.Equal(t, http.StatusInternalServerError, httperror.GetStatusCode(err))
}

func TestFindActiveByLink(t *testing.T) {
	platform := models.PlatformInstagram

	tests := []struct {
		name    string
		filter  models.LinkFilter
		pattern string
	}{
		{
			name:    "handle with platform",
			filter:  models.LinkFilter{Platform: &platform, Handle: "johndoeshop", URLSuffixes: []string{"/johndoeshop", "/@johndoeshop"}},
			pattern: `EXISTS \(SELECT 1 FROM store_links l WHERE l\.store_id = s\.id AND l\.platform = \$2 AND \(REPLACE\(.*\) = \$3 OR LOWER\(l\.url\) LIKE \$4 OR LOWER\(l\.url\) LIKE \$5\)\)`,
		},
		{
			name:    "url equality and containment",
			filter:  models.LinkFilter{URLEquals: []string{"https://mystore.dz/", "mystore.dz"}, URLContains: "mystore.dz"},
			pattern: `EXISTS \(SELECT 1 FROM store_links l WHERE l\.store_id = s\.id AND \(LOWER\(l\.url\) = \$2 OR LOWER\(l\.url\) = \$3 OR LOWER\(l\.url\) LIKE \$4\)\)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newTestRepository(t)

			mock.ExpectQuery(tt.pattern).WillReturnRows(storeRows())
			mock.ExpectQuery(`FROM store_links WHERE store_id = ANY`).
				WillReturnRows(sqlmock.NewRows(linkColumns))

			stores, err := repo.FindActiveByLink(context.Background(), tt.filter)
			require.NoError(t, err)
			assert.Len(t, stores, 2)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestFindActiveByLinkEmptyFilter(t *testing.T) {
	repo, mock := newTestRepository(t)

	stores, err := repo.FindActiveByLink(context.Background(), models.LinkFilter{})
	require.NoError(t, err)
	assert.Empty(t, stores)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindActiveByLinkEscapesLikePatterns(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectQuery(`LOWER\(l\.url\) LIKE \$2`).
		WithArgs("active", `%/john\_doe`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindActiveByLink(context.Background(), models.LinkFilter{URLSuffixes: []string{"/john_doe"}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDNotFound(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectQuery(`FROM stores s WHERE s\.id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

func TestCreateInsertsStoreAndLinks(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO stores \(id, name, normalized_name, slug, status, is_verified, avg_rating, reviews_count, created_at, updated_at\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO store_links \(id, store_id, platform, url, handle, created_at\) VALUES \(.*\), \(.*\)`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	store, err := repo.Create(context.Background(), models.CreateStoreRequest{
		Name:           "New Store",
		NormalizedName: "new",
		Slug:           "new-store",
		Status:         models.StoreStatusPending,
		Links: []models.LinkInput{
			{URL: "https://instagram.com/newstore", Handle: "@newstore", Platform: "instagram"},
			{URL: "https://newstore.dz"},
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, store.ID)
	assert.Equal(t, models.StoreStatusPending, store.Status)
	require.Len(t, store.Links, 2)
	assert.Equal(t, store.ID, store.Links[0].StoreID)
	assert.Equal(t, models.PlatformWebsite, store.Links[1].Platform)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRollsBackOnLinkFailure(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO stores`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO store_links`).WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), models.CreateStoreRequest{
		Name:   "New Store",
		Slug:   "new-store",
		Status: models.StoreStatusPending,
		Links:  []models.LinkInput{{URL: "https://newstore.dz"}},
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSlugExists(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM stores WHERE slug = \$1`).
		WithArgs("amazon-store").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := repo.SlugExists(context.Background(), "amazon-store")
	require.NoError(t, err)
	assert.True(t, exists)
}
