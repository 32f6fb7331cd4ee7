// Package normalizers provides string normalization used for duplicate store matching
package normalizers

import (
	"regexp"
	"strings"
)

// DefaultSuffixes are business words ignored when comparing store names
var DefaultSuffixes = []string{"shop", "store", "boutique", "dz", "algeria", "algerie"}

// Substitution is a plain substring replacement applied during name normalization
type Substitution struct {
	From string
	To   string
}

// DefaultSubstitutions fold common French/English spelling variants. Order matters.
var DefaultSubstitutions = []Substitution{
	{From: "ou", To: "u"},
	{From: "ph", To: "f"},
	{From: "ck", To: "k"},
	{From: "ee", To: "i"},
	{From: "oo", To: "u"},
}

// NameNormalizer collapses superficial variation in store names
type NameNormalizer struct {
	suffixRe      *regexp.Regexp
	substitutions []Substitution
}

// NewNameNormalizer builds a normalizer for the given suffix words and substitutions
func NewNameNormalizer(suffixes []string, substitutions []Substitution) *NameNormalizer {
	n := &NameNormalizer{substitutions: substitutions}

	quoted := make([]string, 0, len(suffixes))
	for _, s := range suffixes {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(s))
	}
	if len(quoted) > 0 {
		n.suffixRe = regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	}

	return n
}

// Normalize lowercases the name, removes suffix words, applies the
// substitutions in order and keeps only [a-z0-9]
func (n *NameNormalizer) Normalize(name string) string {
	s := strings.ToLower(name)

	if n.suffixRe != nil {
		s = n.suffixRe.ReplaceAllString(s, "")
	}

	for _, sub := range n.substitutions {
		s = strings.ReplaceAll(s, sub.From, sub.To)
	}

	return ASCIIAlphanumeric(s)
}

var defaultNameNormalizer = NewNameNormalizer(DefaultSuffixes, DefaultSubstitutions)

// NormalizeStoreName normalizes a store name with the default suffixes and substitutions
func NormalizeStoreName(name string) string {
	return defaultNameNormalizer.Normalize(name)
}

// NormalizeToAlphanumeric lowercases, transliterates and keeps only [a-z0-9].
// A nil transliterator leaves non-ASCII characters for the final strip.
func NormalizeToAlphanumeric(text string, t Transliterator) string {
	s := strings.ToLower(text)
	if t != nil {
		s = t.ToASCIILower(s)
	}
	return ASCIIAlphanumeric(s)
}

// NormalizeHandle strips leading @, lowercases and removes dots and underscores
func NormalizeHandle(handle string) string {
	return strings.NewReplacer(".", "", "_", "").Replace(CleanHandle(handle))
}

// CleanHandle strips leading @ and lowercases, keeping dots and underscores
func CleanHandle(handle string) string {
	return strings.ToLower(strings.TrimLeft(strings.TrimSpace(handle), "@"))
}

var (
	protocolRe = regexp.MustCompile(`^[a-z][a-z0-9+.\-]*://`)
	wwwRe      = regexp.MustCompile(`^www\.`)
)

// NormalizeURL lowercases and strips the protocol, www. and trailing slashes
func NormalizeURL(url string) string {
	s := strings.ToLower(strings.TrimSpace(url))
	s = protocolRe.ReplaceAllString(s, "")
	s = wwwRe.ReplaceAllString(s, "")
	return strings.TrimRight(s, "/")
}

// ASCIIAlphanumeric keeps only a-z and 0-9. Everything else, including
// uppercase and non-ASCII letters, is dropped.
func ASCIIAlphanumeric(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			result.WriteByte(c)
		}
	}
	return result.String()
}

// Slug builds a URL slug from a store name
func Slug(name string, t Transliterator) string {
	s := strings.ToLower(name)
	if t != nil {
		s = t.ToASCIILower(s)
	}

	var result strings.Builder
	dash := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			result.WriteByte(c)
			dash = false
			continue
		}
		if !dash && result.Len() > 0 {
			result.WriteByte('-')
			dash = true
		}
	}

	slug := strings.TrimRight(result.String(), "-")
	if slug == "" {
		return "store"
	}
	return slug
}
