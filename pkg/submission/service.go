// Package submission creates new stores after checking them for duplicates
package submission

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/preuvely/storematch/pkg/matching"
	"github.com/preuvely/storematch/pkg/metrics"
	"github.com/preuvely/storematch/pkg/models"
	"github.com/preuvely/storematch/pkg/normalizers"
	"github.com/preuvely/storematch/pkg/redis"
	"github.com/preuvely/storematch/pkg/tracing"
)

// maxSlugAttempts bounds the numbered slug variants tried before a random suffix
const maxSlugAttempts = 5

// DuplicateChecker decides whether a proposed store already exists
type DuplicateChecker interface {
	NormalizeName(name string) string
	CheckForDuplicates(ctx context.Context, name string, links []models.LinkInput) (models.MatchResult, error)
}

// StoreWriter persists new stores and finds submissions still awaiting review
type StoreWriter interface {
	Create(ctx context.Context, req models.CreateStoreRequest) (*models.Store, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	FindPending(ctx context.Context, filter models.PendingFilter) ([]models.Store, error)
}

// Locker serializes work on a key across instances
type Locker interface {
	WithLock(ctx context.Context, key string, ttl, timeout time.Duration, fn func(context.Context) error) error
}

// EventEmitter announces submission outcomes
type EventEmitter interface {
	EmitStoreSubmitted(ctx context.Context, store *models.Store) error
	EmitDuplicateDetected(ctx context.Context, name string, result models.MatchResult) error
}

// Config contains configuration for the submission service.
type Config struct {
	LockTTL     time.Duration // How long a submission lock is held at most (default: 10s)
	LockTimeout time.Duration // How long to wait for a held submission lock (default: 2s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		LockTTL:     10 * time.Second,
		LockTimeout: 2 * time.Second,
	}
}

// SubmitStoreRequest is a proposed new store. Force creates the store even
// when a duplicate is found.
type SubmitStoreRequest struct {
	Name  string             `json:"name" validate:"required,max=255"`
	Links []models.LinkInput `json:"links" validate:"omitempty,max=20,dive"`
	Force bool               `json:"force"`
}

// SubmitResult is the outcome of a submission. Store is set only when Created.
type SubmitResult struct {
	Created   bool               `json:"created"`
	Store     *models.Store      `json:"store,omitempty"`
	Duplicate models.MatchResult `json:"duplicate"`
}

// Service runs the duplicate-check-then-create workflow
type Service struct {
	log            ectologger.Logger
	checker        DuplicateChecker
	stores         StoreWriter
	locker         Locker
	emitter        EventEmitter
	transliterator normalizers.Transliterator
	cfg            Config
}

// NewService creates a new submission service. A nil transliterator leaves
// non-ASCII names to the slug fallback.
func NewService(
	log ectologger.Logger,
	checker DuplicateChecker,
	stores StoreWriter,
	locker Locker,
	emitter EventEmitter,
	transliterator normalizers.Transliterator,
	cfg Config,
) *Service {
	return &Service{
		log:            log,
		checker:        checker,
		stores:         stores,
		locker:         locker,
		emitter:        emitter,
		transliterator: transliterator,
		cfg:            cfg,
	}
}

// Submit checks the proposal for duplicates and persists it as a pending
// store unless a duplicate was found without Force. Active stores and pending
// submissions both count as duplicates. The check and the insert run under
// locks on the normalized name and every normalized handle.
func (s *Service) Submit(ctx context.Context, req SubmitStoreRequest) (*SubmitResult, error) {
	ctx, span := tracing.StartSpan(ctx, "submission.Service.Submit")
	defer span.End()

	log := s.log.WithContext(ctx).WithFields(map[string]any{
		"name":  req.Name,
		"force": req.Force,
	})

	handles := requestHandles(req.Links)

	var result *SubmitResult
	err := s.withLocks(ctx, s.lockKeys(req.Name, handles), func(ctx context.Context) error {
		var err error
		result, err = s.submit(ctx, req, handles)
		return err
	})
	if err != nil {
		metrics.StoreSubmissionsTotal.WithLabelValues("error").Inc()
		if errors.Is(err, redis.ErrLockNotAcquired) {
			metrics.SubmissionLockWaits.Inc()
			log.Warn("Submission for this name or handle is already in progress")
			return nil, httperror.NewHTTPError(http.StatusConflict, "a submission for this store is already in progress")
		}
		log.WithError(err).Error("Store submission failed")
		return nil, err
	}

	if result.Created {
		metrics.StoreSubmissionsTotal.WithLabelValues("created").Inc()
		if err := s.emitter.EmitStoreSubmitted(ctx, result.Store); err != nil {
			log.WithError(err).Warn("Store created but submitted event was not emitted")
		}
		return result, nil
	}

	metrics.StoreSubmissionsTotal.WithLabelValues("duplicate").Inc()
	if err := s.emitter.EmitDuplicateDetected(ctx, req.Name, result.Duplicate); err != nil {
		log.WithError(err).Warn("Duplicate detected event was not emitted")
	}
	return result, nil
}

func (s *Service) submit(ctx context.Context, req SubmitStoreRequest, handles []string) (*SubmitResult, error) {
	match, err := s.checker.CheckForDuplicates(ctx, req.Name, req.Links)
	if err != nil {
		return nil, err
	}

	normalizedName := s.checker.NormalizeName(req.Name)

	if !match.HasDuplicate && !req.Force {
		match, err = s.checkPending(ctx, normalizedName, handles)
		if err != nil {
			return nil, err
		}
	}

	if match.HasDuplicate && !req.Force {
		return &SubmitResult{Duplicate: match}, nil
	}

	slug, err := s.uniqueSlug(ctx, req.Name)
	if err != nil {
		return nil, err
	}

	store, err := s.stores.Create(ctx, models.CreateStoreRequest{
		Name:           req.Name,
		NormalizedName: normalizedName,
		Slug:           slug,
		Status:         models.StoreStatusPending,
		Links:          req.Links,
	})
	if err != nil {
		return nil, err
	}

	return &SubmitResult{Created: true, Store: store, Duplicate: match}, nil
}

// checkPending reports an earlier submission still awaiting review. The
// matching engine only sees active stores.
func (s *Service) checkPending(ctx context.Context, normalizedName string, handles []string) (models.MatchResult, error) {
	filter := models.PendingFilter{NormalizedName: normalizedName, Handles: handles}
	if filter.IsEmpty() {
		return models.NoDuplicate(), nil
	}

	pending, err := s.stores.FindPending(ctx, filter)
	if err != nil {
		return models.MatchResult{}, fmt.Errorf("failed to find pending stores: %w", err)
	}
	if len(pending) == 0 {
		return models.NoDuplicate(), nil
	}

	s.log.WithContext(ctx).WithFields(map[string]any{
		"store_id": pending[0].ID,
		"pending":  len(pending),
	}).Info("Proposal matches a pending submission")

	if normalizedName != "" && pending[0].NormalizedName == normalizedName {
		return models.DuplicateOf(models.DuplicateTypeName, pending[0]), nil
	}
	return models.DuplicateOf(models.DuplicateTypeHandle, pending[0]), nil
}

func (s *Service) uniqueSlug(ctx context.Context, name string) (string, error) {
	base := normalizers.Slug(name, s.transliterator)

	candidate := base
	for i := 2; i <= maxSlugAttempts+1; i++ {
		exists, err := s.stores.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}

	return fmt.Sprintf("%s-%s", base, uuid.New().String()[:8]), nil
}

// withLocks takes the keys in order and runs fn once all are held
func (s *Service) withLocks(ctx context.Context, keys []string, fn func(context.Context) error) error {
	if len(keys) == 0 {
		return fn(ctx)
	}
	return s.locker.WithLock(ctx, keys[0], s.cfg.LockTTL, s.cfg.LockTimeout, func(ctx context.Context) error {
		return s.withLocks(ctx, keys[1:], fn)
	})
}

// lockKeys returns the name key and one key per handle, sorted so concurrent
// submissions acquire shared keys in the same order
func (s *Service) lockKeys(name string, handles []string) []string {
	keys := []string{s.lockKey(name)}
	for _, h := range handles {
		keys = append(keys, "submission:handle:"+h)
	}
	sort.Strings(keys)
	return keys
}

// lockKey falls back to the slug for names that normalize to nothing
func (s *Service) lockKey(name string) string {
	key := s.checker.NormalizeName(name)
	if key == "" {
		key = normalizers.Slug(name, s.transliterator)
	}
	return "submission:" + key
}

// requestHandles returns the distinct normalized handles of the links. Links
// without a handle contribute the one embedded in a social URL.
func requestHandles(links []models.LinkInput) []string {
	seen := make(map[string]struct{}, len(links))
	handles := make([]string, 0, len(links))
	for _, link := range links {
		handle := normalizers.NormalizeHandle(link.Handle)
		if handle == "" && strings.TrimSpace(link.URL) != "" {
			if extracted, ok := matching.ExtractHandleFromURL(link.URL); ok {
				handle = normalizers.NormalizeHandle(extracted.Handle)
			}
		}
		if handle == "" {
			continue
		}
		if _, ok := seen[handle]; ok {
			continue
		}
		seen[handle] = struct{}{}
		handles = append(handles, handle)
	}
	return handles
}
