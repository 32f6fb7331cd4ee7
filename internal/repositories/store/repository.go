package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"

	"github.com/preuvely/storematch/pkg/database"
	"github.com/preuvely/storematch/pkg/models"
	"github.com/preuvely/storematch/pkg/tracing"
)

var storeColumns = []string{
	"s.id", "s.name", "s.normalized_name", "s.slug", "s.status", "s.is_verified",
	"s.avg_rating", "s.reviews_count", "s.created_at", "s.updated_at",
}

var linkColumns = []string{"id", "store_id", "platform", "url", "handle"}

// normalizedHandleExpr mirrors normalizers.NormalizeHandle in SQL
const normalizedHandleExpr = "REPLACE(REPLACE(LTRIM(LOWER(TRIM(l.handle)), '@'), '.', ''), '_', '')"

// Repository handles store persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new store repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// ListActive retrieves every active store with its links
func (r *Repository) ListActive(ctx context.Context) ([]models.Store, error) {
	ctx, span := tracing.StartSpan(ctx, "store.Repository.ListActive")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(storeColumns...)
	sb.From("stores s")
	sb.Where(sb.Equal("s.status", string(models.StoreStatusActive)))
	sb.OrderBy("s.created_at", "s.id").Asc()

	return r.selectStores(ctx, sb, "failed to list active stores")
}

// FindActiveByLink retrieves active stores having at least one link that
// satisfies filter. An empty filter matches nothing.
func (r *Repository) FindActiveByLink(ctx context.Context, filter models.LinkFilter) ([]models.Store, error) {
	ctx, span := tracing.StartSpan(ctx, "store.Repository.FindActiveByLink")
	defer span.End()

	if filter.IsEmpty() {
		return []models.Store{}, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(storeColumns...)
	sb.From("stores s")
	sb.Where(
		sb.Equal("s.status", string(models.StoreStatusActive)),
		sb.Exists(linkSubquery(filter)),
	)
	sb.OrderBy("s.created_at", "s.id").Asc()

	return r.selectStores(ctx, sb, "failed to find stores by link")
}

// linkSubquery builds the correlated store_links predicate for a filter
func linkSubquery(filter models.LinkFilter) *sqlbuilder.SelectBuilder {
	sub := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sub.Select("1")
	sub.From("store_links l")

	conds := []string{"l.store_id = s.id"}
	if filter.Platform != nil {
		conds = append(conds, sub.Equal("l.platform", string(*filter.Platform)))
	}

	var anyOf []string
	if filter.Handle != "" {
		anyOf = append(anyOf, sub.Equal(normalizedHandleExpr, filter.Handle))
	}
	for _, suffix := range filter.URLSuffixes {
		anyOf = append(anyOf, sub.Like("LOWER(l.url)", "%"+escapeLike(strings.ToLower(suffix))))
	}
	for _, url := range filter.URLEquals {
		anyOf = append(anyOf, sub.Equal("LOWER(l.url)", strings.ToLower(url)))
	}
	if filter.URLContains != "" {
		anyOf = append(anyOf, sub.Like("LOWER(l.url)", "%"+escapeLike(strings.ToLower(filter.URLContains))+"%"))
	}
	conds = append(conds, sub.Or(anyOf...))

	sub.Where(conds...)
	return sub
}

// FindPending retrieves pending stores sharing the normalized name or one of
// the normalized handles
func (r *Repository) FindPending(ctx context.Context, filter models.PendingFilter) ([]models.Store, error) {
	ctx, span := tracing.StartSpan(ctx, "store.Repository.FindPending")
	defer span.End()

	if filter.IsEmpty() {
		return []models.Store{}, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(storeColumns...)
	sb.From("stores s")

	var anyOf []string
	if filter.NormalizedName != "" {
		anyOf = append(anyOf, sb.Equal("s.normalized_name", filter.NormalizedName))
	}
	if len(filter.Handles) > 0 {
		sub := sqlbuilder.PostgreSQL.NewSelectBuilder()
		sub.Select("1")
		sub.From("store_links l")
		sub.Where("l.store_id = s.id", normalizedHandleExpr+" = ANY("+sub.Var(pq.Array(filter.Handles))+")")
		anyOf = append(anyOf, sb.Exists(sub))
	}

	sb.Where(sb.Equal("s.status", string(models.StoreStatusPending)), sb.Or(anyOf...))
	sb.OrderBy("s.created_at", "s.id").Asc()

	return r.selectStores(ctx, sb, "failed to find pending stores")
}

// GetByID retrieves a store in any status
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Store, error) {
	ctx, span := tracing.StartSpan(ctx, "store.Repository.GetByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(storeColumns...)
	sb.From("stores s")
	sb.Where(sb.Equal("s.id", id))

	query, args := sb.Build()
	var store models.Store
	if err := r.db.GetContext(ctx, &store, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("store %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get store")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get store")
	}

	stores := []models.Store{store}
	if err := r.attachLinks(ctx, r.db, stores); err != nil {
		return nil, err
	}
	return &stores[0], nil
}

// SlugExists reports whether any store already uses slug
func (r *Repository) SlugExists(ctx context.Context, slug string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "store.Repository.SlugExists")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("stores")
	sb.Where(sb.Equal("slug", slug))

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to check store slug")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to check store slug")
	}
	return count > 0, nil
}

// Create inserts a store and its links in one transaction
func (r *Repository) Create(ctx context.Context, req models.CreateStoreRequest) (*models.Store, error) {
	ctx, span := tracing.StartSpan(ctx, "store.Repository.Create")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method": "Create",
		"name":   req.Name,
		"slug":   req.Slug,
	})

	now := time.Now().UTC()
	store := &models.Store{
		ID:             uuid.New().String(),
		Name:           req.Name,
		NormalizedName: req.NormalizedName,
		Slug:           req.Slug,
		Status:         req.Status,
		CreatedAt:      now,
		UpdatedAt:      now,
		Links:          make([]models.Link, 0, len(req.Links)),
	}
	for _, in := range req.Links {
		store.Links = append(store.Links, models.NewLink(store.ID, in))
	}

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create store")
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("stores")
	ib.Cols("id", "name", "normalized_name", "slug", "status", "is_verified", "avg_rating", "reviews_count", "created_at", "updated_at")
	ib.Values(store.ID, store.Name, store.NormalizedName, store.Slug, store.Status, store.IsVerified, store.AvgRating, store.ReviewsCount, store.CreatedAt, store.UpdatedAt)

	query, args := ib.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("Failed to insert store")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create store")
	}

	if len(store.Links) > 0 {
		lb := sqlbuilder.PostgreSQL.NewInsertBuilder()
		lb.InsertInto("store_links")
		lb.Cols("id", "store_id", "platform", "url", "handle", "created_at")
		for _, link := range store.Links {
			lb.Values(link.ID, link.StoreID, link.Platform, link.URL, link.Handle, now)
		}

		query, args := lb.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			log.WithError(err).Error("Failed to insert store links")
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create store")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create store")
	}

	log.WithFields(map[string]any{"id": store.ID, "links": len(store.Links)}).Info("Created store")
	return store, nil
}

func (r *Repository) selectStores(ctx context.Context, sb *sqlbuilder.SelectBuilder, failure string) ([]models.Store, error) {
	query, args := sb.Build()

	stores := []models.Store{}
	if err := r.db.SelectContext(ctx, &stores, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error(failure)
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, failure)
	}

	if err := r.attachLinks(ctx, r.db, stores); err != nil {
		return nil, err
	}
	return stores, nil
}

// attachLinks loads the links of all stores with a single query. The IDs are
// bound as one array so the statement stays under the bind parameter limit.
func (r *Repository) attachLinks(ctx context.Context, q database.Querier, stores []models.Store) error {
	if len(stores) == 0 {
		return nil
	}

	ids := make([]string, 0, len(stores))
	index := make(map[string]int, len(stores))
	for i := range stores {
		ids = append(ids, stores[i].ID)
		index[stores[i].ID] = i
		stores[i].Links = []models.Link{}
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(linkColumns...)
	sb.From("store_links")
	sb.Where("store_id = ANY(" + sb.Var(pq.Array(ids)) + ")")
	sb.OrderBy("created_at", "id").Asc()

	query, args := sb.Build()
	var links []models.Link
	if err := q.SelectContext(ctx, &links, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to load store links")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to load store links")
	}

	for _, link := range links {
		if i, ok := index[link.StoreID]; ok {
			stores[i].Links = append(stores[i].Links, link)
		}
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
