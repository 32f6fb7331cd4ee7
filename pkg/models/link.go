package models

import (
	"strings"

	"github.com/google/uuid"

	"github.com/preuvely/storematch/pkg/normalizers"
)

// Platform identifies where a store link points
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformTikTok    Platform = "tiktok"
	PlatformWhatsApp  Platform = "whatsapp"
	PlatformWebsite   Platform = "website"
)

var platforms = map[Platform]bool{
	PlatformInstagram: true,
	PlatformFacebook:  true,
	PlatformTikTok:    true,
	PlatformWhatsApp:  true,
	PlatformWebsite:   true,
}

// ParsePlatform converts a free-form platform name into a Platform
func ParsePlatform(s string) (Platform, bool) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	return p, platforms[p]
}

// Link is a social or web link belonging to a store
type Link struct {
	ID       string   `json:"id" db:"id"`
	StoreID  string   `json:"store_id" db:"store_id"`
	Platform Platform `json:"platform" db:"platform"`
	URL      string   `json:"url" db:"url"`
	Handle   *string  `json:"handle,omitempty" db:"handle"`
}

// LinkInput is a link proposed for a new store. Every field is optional.
type LinkInput struct {
	URL      string `json:"url,omitempty" validate:"omitempty,max=2048"`
	Handle   string `json:"handle,omitempty" validate:"omitempty,max=255"`
	Platform string `json:"platform,omitempty" validate:"omitempty,oneof=instagram facebook tiktok whatsapp website"`
}

// LinkFilter selects stores having at least one link that satisfies it.
//
// A link satisfies the filter when it is on Platform (if set) and any of the
// populated criteria hold:
//   - its normalized handle equals Handle
//   - its lowercased URL ends with one of URLSuffixes
//   - its URL equals one of URLEquals, ignoring case
//   - its lowercased URL contains URLContains
type LinkFilter struct {
	Platform    *Platform
	Handle      string
	URLSuffixes []string
	URLEquals   []string
	URLContains string
}

// IsEmpty reports whether the filter has no matching criteria
func (f LinkFilter) IsEmpty() bool {
	return f.Handle == "" && len(f.URLSuffixes) == 0 && len(f.URLEquals) == 0 && f.URLContains == ""
}

// Matches evaluates the filter against a single link
func (f LinkFilter) Matches(link Link) bool {
	if f.IsEmpty() {
		return false
	}
	if f.Platform != nil && link.Platform != *f.Platform {
		return false
	}

	if f.Handle != "" && link.Handle != nil && normalizers.NormalizeHandle(*link.Handle) == f.Handle {
		return true
	}

	url := strings.ToLower(link.URL)
	for _, suffix := range f.URLSuffixes {
		if strings.HasSuffix(url, suffix) {
			return true
		}
	}
	for _, candidate := range f.URLEquals {
		if strings.EqualFold(link.URL, candidate) {
			return true
		}
	}
	if f.URLContains != "" && strings.Contains(url, f.URLContains) {
		return true
	}

	return false
}

// MatchesStore reports whether any of the store's links satisfy the filter
func (f LinkFilter) MatchesStore(store Store) bool {
	for _, link := range store.Links {
		if f.Matches(link) {
			return true
		}
	}
	return false
}

// NewLink builds the link persisted for an input. Links without a known
// platform are stored as website links.
func NewLink(storeID string, in LinkInput) Link {
	platform, ok := ParsePlatform(in.Platform)
	if !ok {
		platform = PlatformWebsite
	}

	link := Link{
		ID:       uuid.New().String(),
		StoreID:  storeID,
		Platform: platform,
		URL:      strings.TrimSpace(in.URL),
	}
	if handle := strings.TrimSpace(in.Handle); handle != "" {
		link.Handle = &handle
	}
	return link
}
