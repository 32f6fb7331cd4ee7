package matching

import (
	"regexp"

	"github.com/preuvely/storematch/pkg/models"
)

type handlePattern struct {
	platform models.Platform
	re       *regexp.Regexp
}

// Checked in order, first match wins. Captures stop at '/', '?' and '#'.
// A bare tiktok.com/@ has no handle and falls through to URL matching.
var handlePatterns = []handlePattern{
	{platform: models.PlatformInstagram, re: regexp.MustCompile(`(?i)instagram\.com/([^/?#\s]+)`)},
	{platform: models.PlatformFacebook, re: regexp.MustCompile(`(?i)(?:facebook|fb)\.com/([^/?#\s]+)`)},
	{platform: models.PlatformTikTok, re: regexp.MustCompile(`(?i)tiktok\.com/@?([^/?#\s@]+)`)},
	{platform: models.PlatformWhatsApp, re: regexp.MustCompile(`(?i)wa\.me/(\d+)`)},
}

// ExtractedHandle is a social handle recognised in a URL
type ExtractedHandle struct {
	Handle   string
	Platform models.Platform
}

// ExtractHandleFromURL finds the platform handle embedded in a social URL.
// Returns false for URLs that are not recognised social profiles.
func ExtractHandleFromURL(url string) (ExtractedHandle, bool) {
	for _, p := range handlePatterns {
		m := p.re.FindStringSubmatch(url)
		if len(m) < 2 || m[1] == "" {
			continue
		}
		return ExtractedHandle{Handle: m[1], Platform: p.platform}, true
	}
	return ExtractedHandle{}, false
}
