package metadata

import (
	"regexp"
	"strings"
)

var (
	ipfsHashRe = regexp.MustCompile(`^(Qm[a-zA-Z0-9]{44,}|bafy[a-zA-Z0-9]{44,})(/.*)?$`)
	ipfsPathRe = regexp.MustCompile(`ipfs/((?:Qm|bafy)[a-zA-Z0-9]{44,})(/.*)?`)
)

// ContentPath is an IPFS content identifier with an optional sub-path
type ContentPath struct {
	Hash string
	Path string
}

// String returns hash and path joined, ready to append to a gateway prefix
func (c ContentPath) String() string {
	return c.Hash + c.Path
}

// ParseContentPath extracts an IPFS content hash from an ipfs:// URI, a
// gateway URL containing /ipfs/<hash>, or a bare hash.
func ParseContentPath(raw string) (ContentPath, bool) {
	s := strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(s, "ipfs://"); ok {
		s = strings.TrimPrefix(rest, "ipfs/")
	} else if m := ipfsPathRe.FindStringSubmatch(s); m != nil {
		return ContentPath{Hash: m[1], Path: m[2]}, true
	}

	m := ipfsHashRe.FindStringSubmatch(s)
	if m == nil {
		return ContentPath{}, false
	}
	return ContentPath{Hash: m[1], Path: m[2]}, true
}
