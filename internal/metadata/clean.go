package metadata

import (
	"regexp"
	"strings"

	"github.com/nft3d-scanner/internal/types"
)

var (
	markdownLinkRe  = regexp.MustCompile(`\[.*?\]\((.*?)\)`)
	duplicateSlash  = regexp.MustCompile(`([^:/])/{2,}`)
	trailingParenRe = regexp.MustCompile(`\)+$`)
	modelExtRe      = regexp.MustCompile(`(?i)\.(glb|gltf|vrm)$`)
)

// CleanURL strips markdown link syntax, escaped and literal newlines,
// duplicate path slashes, trailing parentheses and surrounding
// whitespace. The result is a fixed
// point: CleanURL(CleanURL(u)) == CleanURL(u).
func CleanURL(raw string) string {
	// every pass that changes the string makes it shorter, so this terminates
	cur := raw
	for {
		next := cleanOnce(cur)
		if next == cur {
			return cur
		}
		cur = next
	}
}

func cleanOnce(s string) string {
	s = markdownLinkRe.ReplaceAllString(s, "$1")
	s = strings.ReplaceAll(s, `\n`, "")
	s = strings.ReplaceAll(s, "\n", "")
	s = duplicateSlash.ReplaceAllString(s, "$1/")
	s = trailingParenRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// FormatFromExtension returns the 3D format named by the trailing extension
// of a URL.
func FormatFromExtension(url string) (types.ModelFormat, bool) {
	m := modelExtRe.FindStringSubmatch(url)
	if m == nil {
		return types.FormatUnknown, false
	}
	return types.ModelFormat(strings.ToLower(m[1])), true
}

// HasModelExtension reports whether url ends in .glb, .gltf or .vrm
func HasModelExtension(url string) bool {
	return modelExtRe.MatchString(url)
}

var mimeFormats = map[string]types.ModelFormat{
	"model/gltf-binary": types.FormatGLB,
	"model/gltf+json":   types.FormatGLTF,
	"model/vrm":         types.FormatVRM,
}

// FormatFromMIME maps a media type to a 3D format. Parameters after ';'
// are ignored.
func FormatFromMIME(mime string) (types.ModelFormat, bool) {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	f, ok := mimeFormats[mime]
	return f, ok
}
