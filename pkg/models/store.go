package models

import (
	"time"

	"github.com/Gobusters/ectolinq"

	"github.com/preuvely/storematch/pkg/normalizers"
)

// StoreStatus is the lifecycle state of a store listing
type StoreStatus string

const (
	StoreStatusActive    StoreStatus = "active"
	StoreStatusSuspended StoreStatus = "suspended"
	StoreStatusPending   StoreStatus = "pending"
)

// Store is a store listing together with its social and web links
type Store struct {
	ID             string      `json:"id" db:"id"`
	Name           string      `json:"name" db:"name"`
	NormalizedName string      `json:"-" db:"normalized_name"`
	Slug           string      `json:"slug" db:"slug"`
	Status         StoreStatus `json:"status" db:"status"`
	IsVerified     bool        `json:"is_verified" db:"is_verified"`
	AvgRating      float64     `json:"avg_rating" db:"avg_rating"`
	ReviewsCount   int         `json:"reviews_count" db:"reviews_count"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`
	Links          []Link      `json:"links" db:"-"`
}

// IsActive reports whether the store can be a duplicate candidate
func (s Store) IsActive() bool {
	return s.Status == StoreStatusActive
}

// Summary returns the public projection of the store surfaced to submitters
func (s Store) Summary() *StoreSummary {
	return &StoreSummary{
		ID:           s.ID,
		Name:         s.Name,
		Slug:         s.Slug,
		IsVerified:   s.IsVerified,
		AvgRating:    s.AvgRating,
		ReviewsCount: s.ReviewsCount,
	}
}

// StoreSummary is the subset of a store returned with a duplicate match
type StoreSummary struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Slug         string  `json:"slug"`
	IsVerified   bool    `json:"is_verified"`
	AvgRating    float64 `json:"avg_rating"`
	ReviewsCount int     `json:"reviews_count"`
}

// Summarize maps stores to their summaries, preserving order
func Summarize(stores []Store) []StoreSummary {
	if len(stores) == 0 {
		return []StoreSummary{}
	}
	return ectolinq.Map(stores, func(s Store) StoreSummary {
		return *s.Summary()
	})
}

// CreateStoreRequest is the input for persisting a new store.
// NormalizedName is what pending submissions are compared on.
type CreateStoreRequest struct {
	Name           string
	NormalizedName string
	Slug           string
	Status         StoreStatus
	Links          []LinkInput
}

// PendingFilter selects pending stores sharing the normalized name or any of
// the normalized handles. Empty criteria never match.
type PendingFilter struct {
	NormalizedName string
	Handles        []string
}

// IsEmpty reports whether the filter has no matching criteria
func (f PendingFilter) IsEmpty() bool {
	return f.NormalizedName == "" && len(f.Handles) == 0
}

// Matches evaluates the filter against a store in any status. Callers pick
// the status.
func (f PendingFilter) Matches(store Store) bool {
	if f.NormalizedName != "" && store.NormalizedName == f.NormalizedName {
		return true
	}
	return f.MatchesHandle(store) != ""
}

// MatchesHandle returns the first filter handle one of the store's links
// carries, or an empty string
func (f PendingFilter) MatchesHandle(store Store) string {
	for _, link := range store.Links {
		if link.Handle == nil {
			continue
		}
		normalized := normalizers.NormalizeHandle(*link.Handle)
		for _, h := range f.Handles {
			if h != "" && h == normalized {
				return h
			}
		}
	}
	return ""
}
