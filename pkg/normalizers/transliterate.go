package normalizers

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Transliterator converts lowercase text to its closest ASCII form
type Transliterator interface {
	ToASCIILower(s string) string
}

// NoopTransliterator leaves text untouched
type NoopTransliterator struct{}

// ToASCIILower returns s lowercased
func (NoopTransliterator) ToASCIILower(s string) string {
	return strings.ToLower(s)
}

// ASCIIFolder removes diacritics and romanizes Arabic script. Runes it does
// not know are kept as-is.
type ASCIIFolder struct{}

// NewASCIIFolder creates an ASCIIFolder
func NewASCIIFolder() *ASCIIFolder {
	return &ASCIIFolder{}
}

// ToASCIILower folds s to lowercase ASCII where possible
func (f *ASCIIFolder) ToASCIILower(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var result strings.Builder
	result.Grow(len(folded))
	for _, r := range folded {
		if r < unicode.MaxASCII {
			result.WriteRune(unicode.ToLower(r))
			continue
		}
		if latin, ok := romanized[r]; ok {
			result.WriteString(latin)
			continue
		}
		result.WriteRune(unicode.ToLower(r))
	}
	return result.String()
}

var romanized = map[rune]string{
	// Latin letters without a decomposition
	'ß': "ss", 'æ': "ae", 'Æ': "ae", 'œ': "oe", 'Œ': "oe", 'ø': "o", 'Ø': "o",
	'ł': "l", 'Ł': "l", 'đ': "d", 'Đ': "d", 'ð': "d", 'þ': "th", 'ı': "i",

	// Arabic
	'ا': "a", 'أ': "a", 'إ': "i", 'آ': "a", 'ٱ': "a", 'ى': "a",
	'ب': "b", 'ت': "t", 'ث': "th", 'ج': "j", 'ح': "h", 'خ': "kh",
	'د': "d", 'ذ': "dh", 'ر': "r", 'ز': "z", 'س': "s", 'ش': "sh",
	'ص': "s", 'ض': "d", 'ط': "t", 'ظ': "z", 'ع': "a", 'غ': "gh",
	'ف': "f", 'ق': "q", 'ك': "k", 'ل': "l", 'م': "m", 'ن': "n",
	'ه': "h", 'ة': "a", 'و': "w", 'ؤ': "w", 'ي': "y", 'ئ': "y", 'ء': "",
	'پ': "p", 'چ': "ch", 'ڤ': "v", 'گ': "g",
	'٠': "0", '١': "1", '٢': "2", '٣': "3", '٤': "4",
	'٥': "5", '٦': "6", '٧': "7", '٨': "8", '٩': "9",
}
