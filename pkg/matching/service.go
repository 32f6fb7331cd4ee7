// Package matching decides whether a proposed store collides with an existing
// active store. Three strategies run in priority order:
// - name similarity over the full active catalog
// - normalized handle equality against store links
// - URL equality or containment against store links
package matching

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	"github.com/preuvely/storematch/pkg/metrics"
	"github.com/preuvely/storematch/pkg/models"
	"github.com/preuvely/storematch/pkg/normalizers"
	"github.com/preuvely/storematch/pkg/tracing"
)

// StoreCatalog is the read-only view of stores used for duplicate lookups.
// Implementations must only return stores whose status is active.
type StoreCatalog interface {
	ListActive(ctx context.Context) ([]models.Store, error)
	FindActiveByLink(ctx context.Context, filter models.LinkFilter) ([]models.Store, error)
}

// Config contains configuration for the matching service.
type Config struct {
	NameThreshold float64 // Minimum similarity for a fuzzy name match (default: 0.85)
	Suffixes      []string
	Substitutions []normalizers.Substitution
}

// DefaultConfig returns the defaults tuned for Algerian French/Arabic/English store names.
func DefaultConfig() Config {
	return Config{
		NameThreshold: 0.85,
		Suffixes:      normalizers.DefaultSuffixes,
		Substitutions: normalizers.DefaultSubstitutions,
	}
}

// Option customizes a Service
type Option func(*Service)

// WithTransliterator sets the script transliteration used by NormalizeToAlphanumeric
func WithTransliterator(t normalizers.Transliterator) Option {
	return func(s *Service) {
		if t != nil {
			s.transliterator = t
		}
	}
}

// Service runs duplicate checks against a StoreCatalog. It holds no mutable
// state and is safe for concurrent use.
type Service struct {
	log            ectologger.Logger
	catalog        StoreCatalog
	names          *normalizers.NameNormalizer
	transliterator normalizers.Transliterator
	scorer         *Scorer
	cfg            Config
}

// NewService creates a new matching service.
func NewService(log ectologger.Logger, catalog StoreCatalog, cfg Config, opts ...Option) *Service {
	s := &Service{
		log:            log,
		catalog:        catalog,
		names:          normalizers.NewNameNormalizer(cfg.Suffixes, cfg.Substitutions),
		transliterator: normalizers.NoopTransliterator{},
		scorer:         NewScorer(),
		cfg:            cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeName folds suffix words and spelling variants and keeps only [a-z0-9]
func (s *Service) NormalizeName(name string) string {
	return s.names.Normalize(name)
}

// NormalizeToAlphanumeric transliterates to ASCII and keeps only [a-z0-9]
func (s *Service) NormalizeToAlphanumeric(text string) string {
	return normalizers.NormalizeToAlphanumeric(text, s.transliterator)
}

// Similarity scores two store names in [0,1] after name normalization.
// Two names that both normalize to nothing score 0.
func (s *Service) Similarity(a, b string) float64 {
	return s.similarity(s.NormalizeName(a), s.NormalizeName(b))
}

func (s *Service) similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 0.0
	}
	if a == b {
		return 1.0
	}
	return max(s.scorer.Levenshtein(a, b), s.scorer.SimilarTextRatio(a, b))
}

// FindByName returns every active store whose name matches exactly after
// normalization, matches after transliteration, or is similar enough.
func (s *Service) FindByName(ctx context.Context, name string) ([]models.Store, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Service.FindByName")
	defer span.End()

	log := s.log.WithContext(ctx).WithFields(map[string]any{"name": name})

	normalized := s.NormalizeName(name)
	alphanumeric := s.NormalizeToAlphanumeric(name)
	if normalized == "" && alphanumeric == "" {
		log.Debug("Name normalizes to nothing; skipping name match")
		return []models.Store{}, nil
	}

	stores, err := s.catalog.ListActive(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to list active stores")
		return nil, fmt.Errorf("failed to list active stores: %w", err)
	}
	metrics.CandidatesScanned.Observe(float64(len(stores)))

	matches := []models.Store{}
	for _, store := range stores {
		if !store.IsActive() {
			continue
		}

		candidate := s.NormalizeName(store.Name)
		switch {
		case normalized != "" && candidate == normalized:
		case alphanumeric != "" && s.NormalizeToAlphanumeric(store.Name) == alphanumeric:
		case s.similarity(candidate, normalized) >= s.cfg.NameThreshold:
		default:
			continue
		}
		matches = append(matches, store)
	}

	log.WithFields(map[string]any{
		"normalized": normalized,
		"scanned":    len(stores),
		"matches":    len(matches),
	}).Debug("Name match complete")

	return matches, nil
}

// FindByHandle returns active stores with a link whose normalized handle
// equals the normalized input or whose URL ends in the handle. An empty
// platform matches links on any platform.
func (s *Service) FindByHandle(ctx context.Context, handle, platform string) ([]models.Store, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Service.FindByHandle")
	defer span.End()

	log := s.log.WithContext(ctx).WithFields(map[string]any{
		"handle":   handle,
		"platform": platform,
	})

	normalized := normalizers.NormalizeHandle(handle)
	if normalized == "" {
		return []models.Store{}, nil
	}

	filter := models.LinkFilter{
		Handle:      normalized,
		URLSuffixes: handleSuffixes(normalizers.CleanHandle(handle), normalized),
	}
	if strings.TrimSpace(platform) != "" {
		p, _ := models.ParsePlatform(platform)
		filter.Platform = &p
	}

	stores, err := s.findByLink(ctx, filter)
	if err != nil {
		log.WithError(err).Error("Failed to find stores by handle")
		return nil, err
	}

	log.WithFields(map[string]any{"matches": len(stores)}).Debug("Handle match complete")
	return stores, nil
}

// FindByURL extracts a social handle from the URL and matches on it. URLs
// without a recognisable handle are matched by raw equality, normalized
// equality or normalized containment.
func (s *Service) FindByURL(ctx context.Context, url string) ([]models.Store, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Service.FindByURL")
	defer span.End()

	log := s.log.WithContext(ctx).WithFields(map[string]any{"url": url})

	if extracted, ok := ExtractHandleFromURL(url); ok {
		log.WithFields(map[string]any{
			"handle":   extracted.Handle,
			"platform": extracted.Platform,
		}).Debug("Extracted handle from URL")
		return s.FindByHandle(ctx, extracted.Handle, string(extracted.Platform))
	}

	raw := strings.TrimSpace(url)
	normalized := normalizers.NormalizeURL(raw)

	filter := models.LinkFilter{URLContains: normalized}
	for _, candidate := range []string{raw, normalized} {
		if candidate != "" && !containsFold(filter.URLEquals, candidate) {
			filter.URLEquals = append(filter.URLEquals, candidate)
		}
	}
	if filter.IsEmpty() {
		return []models.Store{}, nil
	}

	stores, err := s.findByLink(ctx, filter)
	if err != nil {
		log.WithError(err).Error("Failed to find stores by URL")
		return nil, err
	}

	log.WithFields(map[string]any{"matches": len(stores)}).Debug("URL match complete")
	return stores, nil
}

// CheckForDuplicates runs the name check, then each link in input order, and
// reports the first store found. A link with a handle is matched by handle
// first and falls back to its URL.
func (s *Service) CheckForDuplicates(ctx context.Context, name string, links []models.LinkInput) (models.MatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Service.CheckForDuplicates")
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.DuplicateCheckDuration.Observe(time.Since(start).Seconds())
	}()

	log := s.log.WithContext(ctx).WithFields(map[string]any{
		"name":       name,
		"link_count": len(links),
	})

	result, err := s.checkForDuplicates(ctx, name, links)
	if err != nil {
		metrics.DuplicateChecksTotal.WithLabelValues("error").Inc()
		log.WithError(err).Error("Duplicate check failed")
		return models.MatchResult{}, err
	}

	metrics.DuplicateChecksTotal.WithLabelValues(result.TypeLabel()).Inc()
	if result.HasDuplicate {
		log.WithFields(map[string]any{
			"duplicate_type": result.TypeLabel(),
			"store_id":       result.ExistingStore.ID,
		}).Info("Duplicate store detected")
	}

	return result, nil
}

func (s *Service) checkForDuplicates(ctx context.Context, name string, links []models.LinkInput) (models.MatchResult, error) {
	stores, err := s.FindByName(ctx, name)
	if err != nil {
		return models.MatchResult{}, err
	}
	if len(stores) > 0 {
		return models.DuplicateOf(models.DuplicateTypeName, stores[0]), nil
	}

	for _, link := range links {
		if strings.TrimSpace(link.Handle) != "" {
			stores, err := s.FindByHandle(ctx, link.Handle, link.Platform)
			if err != nil {
				return models.MatchResult{}, err
			}
			if len(stores) > 0 {
				return models.DuplicateOf(models.DuplicateTypeHandle, stores[0]), nil
			}
		}

		if strings.TrimSpace(link.URL) != "" {
			stores, err := s.FindByURL(ctx, link.URL)
			if err != nil {
				return models.MatchResult{}, err
			}
			if len(stores) > 0 {
				return models.DuplicateOf(models.DuplicateTypeSocialLink, stores[0]), nil
			}
		}
	}

	return models.NoDuplicate(), nil
}

func (s *Service) findByLink(ctx context.Context, filter models.LinkFilter) ([]models.Store, error) {
	stores, err := s.catalog.FindActiveByLink(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find stores by link: %w", err)
	}

	active := ectolinq.Filter(stores, models.Store.IsActive)
	if active == nil {
		active = []models.Store{}
	}
	return active, nil
}

// handleSuffixes returns the URL endings a profile link for any of the handles can have
func handleSuffixes(handles ...string) []string {
	seen := make(map[string]struct{}, len(handles))
	suffixes := make([]string, 0, 4*len(handles))
	for _, h := range handles {
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		suffixes = append(suffixes, "/"+h, "/"+h+"/", "/@"+h, "/@"+h+"/")
	}
	return suffixes
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
