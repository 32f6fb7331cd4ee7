package models

// DuplicateType classifies which strategy found a duplicate
type DuplicateType string

const (
	DuplicateTypeName       DuplicateType = "name"
	DuplicateTypeHandle     DuplicateType = "handle"
	DuplicateTypeSocialLink DuplicateType = "social_link"
)

// MatchResult is the decision returned by a duplicate check
type MatchResult struct {
	HasDuplicate  bool           `json:"has_duplicate"`
	DuplicateType *DuplicateType `json:"duplicate_type"`
	ExistingStore *StoreSummary  `json:"existing_store"`
}

// NoDuplicate is the result when no strategy matched
func NoDuplicate() MatchResult {
	return MatchResult{}
}

// DuplicateOf builds a positive result for the given store
func DuplicateOf(duplicateType DuplicateType, store Store) MatchResult {
	return MatchResult{
		HasDuplicate:  true,
		DuplicateType: &duplicateType,
		ExistingStore: store.Summary(),
	}
}

// TypeLabel returns the duplicate type or "none"
func (r MatchResult) TypeLabel() string {
	if r.DuplicateType == nil {
		return "none"
	}
	return string(*r.DuplicateType)
}
