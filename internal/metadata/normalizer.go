// Package metadata turns raw provider records into AssetRecords and detects
// which of them reference a 3D model.
package metadata

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nft3d-scanner/internal/models"
	"github.com/nft3d-scanner/internal/types"
)

const (
	defaultName       = "Untitled"
	defaultCollection = "Unknown Collection"
	defaultCreator    = "Unknown Creator"
)

var descriptionLinkRe = regexp.MustCompile(`\[.*?\]\((https?://[^\s)]+)\)`)

// source proposes model URL candidates found in one place of a record.
// An empty Format means the collector infers it from the URL.
type source func(nft *models.OwnedNFT) []types.ModelURLCandidate

// sources are consulted in this order; earlier sources win on duplicate URLs
var sources = []source{
	vrmURLSource,
	animationDetailsSource,
	descriptionLinksSource,
	animationURLSource,
	propertyFilesSource,
	mediaSource,
	metadataLeavesSource,
}

// Normalize converts one provider record into an AssetRecord. It never
// fails; missing fields fall back to defaults.
func Normalize(raw *models.OwnedNFT, network types.NetworkInfo) *types.AssetRecord {
	if raw == nil {
		raw = &models.OwnedNFT{}
	}
	md := raw.Metadata

	contract := normalizeAddress(raw.Contract.Address)
	modelURLs := DetectModelURLs(raw)

	rec := &types.AssetRecord{
		TokenID:         raw.TokenID,
		ContractAddress: contract,
		Name:            firstNonEmpty(raw.Title, md.String("name"), defaultName),
		Description:     firstNonEmpty(raw.Description, md.String("description")),
		Collection:      firstNonEmpty(raw.Contract.Name, defaultCollection),
		Creator:         firstNonEmpty(raw.Contract.Name, contract, defaultCreator),
		Format:          types.FormatUnknown,
		Network:         network,
		ModelURLs:       modelURLs,
		Storage:         storageInfo(raw.TokenURI),
	}
	if len(raw.Media) > 0 {
		rec.Thumbnail = raw.Media[0].Thumbnail
	}
	if len(modelURLs) > 0 {
		rec.Format = modelURLs[0].Format
		rec.Storage.URL = modelURLs[0].URL
	}
	return rec
}

// DetectModelURLs runs every detection source over the record and returns
// the unique candidates ordered glb, vrm, gltf. The sort is stable, so
// candidates of the same format keep discovery order.
func DetectModelURLs(raw *models.OwnedNFT) []types.ModelURLCandidate {
	c := newCollector()
	for _, src := range sources {
		for _, cand := range src(raw) {
			c.add(cand.URL, cand.Format)
		}
	}

	sort.SliceStable(c.out, func(i, j int) bool {
		pi, _ := c.out[i].Format.Priority()
		pj, _ := c.out[j].Format.Priority()
		return pi < pj
	})
	return c.out
}

type collector struct {
	seen map[string]struct{}
	out  []types.ModelURLCandidate
}

func newCollector() *collector {
	return &collector{seen: make(map[string]struct{}), out: []types.ModelURLCandidate{}}
}

func (c *collector) add(url string, format types.ModelFormat) {
	cleaned := CleanURL(url)
	if cleaned == "" {
		return
	}

	// a URL is claimed by the first source that saw it, even if that
	// source could not assign a ranked format
	key := strings.ToLower(cleaned)
	if _, dup := c.seen[key]; dup {
		return
	}
	c.seen[key] = struct{}{}

	if format == "" {
		format, _ = FormatFromExtension(cleaned)
	}
	format = types.ModelFormat(strings.ToLower(string(format)))
	if !format.Is3D() {
		return
	}
	c.out = append(c.out, types.ModelURLCandidate{URL: cleaned, Format: format})
}

func vrmURLSource(nft *models.OwnedNFT) []types.ModelURLCandidate {
	if u := nft.Metadata.String("vrm_url"); u != "" {
		return []types.ModelURLCandidate{{URL: u, Format: types.FormatVRM}}
	}
	return nil
}

func animationDetailsSource(nft *models.OwnedNFT) []types.ModelURLCandidate {
	md := nft.Metadata
	if !strings.EqualFold(md.String("animation_details", "format"), "glb") {
		return nil
	}
	if u := md.FirstString([]string{"animation"}, []string{"animation_url"}); u != "" {
		return []types.ModelURLCandidate{{URL: u, Format: types.FormatGLB}}
	}
	return nil
}

func descriptionLinksSource(nft *models.OwnedNFT) []types.ModelURLCandidate {
	var out []types.ModelURLCandidate
	for _, text := range []string{nft.Metadata.String("description"), nft.Description} {
		for _, m := range descriptionLinkRe.FindAllStringSubmatch(text, -1) {
			if f, ok := FormatFromExtension(m[1]); ok {
				out = append(out, types.ModelURLCandidate{URL: m[1], Format: f})
			}
		}
	}
	return out
}

func animationURLSource(nft *models.OwnedNFT) []types.ModelURLCandidate {
	if u := nft.Metadata.String("animation_url"); u != "" {
		return []types.ModelURLCandidate{{URL: u}}
	}
	return nil
}

func propertyFilesSource(nft *models.OwnedNFT) []types.ModelURLCandidate {
	var out []types.ModelURLCandidate
	for _, item := range nft.Metadata.List("properties", "files") {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		file := models.Tree(m)
		u := file.String("uri")
		if u == "" {
			continue
		}
		out = append(out, types.ModelURLCandidate{URL: u, Format: inferFormat(u, file.String("type"))})
	}
	return out
}

func mediaSource(nft *models.OwnedNFT) []types.ModelURLCandidate {
	var out []types.ModelURLCandidate
	for _, m := range nft.Media {
		if m.URI == "" {
			continue
		}
		if HasModelExtension(m.URI) || strings.Contains(strings.ToLower(m.Format), "model") {
			out = append(out, types.ModelURLCandidate{URL: m.URI, Format: inferFormat(m.URI, m.Format)})
		}
	}
	return out
}

// metadataLeavesSource visits string leaves in sorted path order so the
// result does not depend on map iteration.
func metadataLeavesSource(nft *models.OwnedNFT) []types.ModelURLCandidate {
	type leaf struct {
		path  string
		value string
	}
	var leaves []leaf
	nft.Metadata.Walk(func(path []string, value string) {
		if HasModelExtension(strings.TrimSpace(value)) {
			leaves = append(leaves, leaf{path: strings.Join(path, "\x00"), value: value})
		}
	})
	sort.Slice(leaves, func(i, j int) bool { return leaves[i].path < leaves[j].path })

	out := make([]types.ModelURLCandidate, 0, len(leaves))
	for _, l := range leaves {
		out = append(out, types.ModelURLCandidate{URL: l.value})
	}
	return out
}

// inferFormat prefers the URL extension and falls back to a media type
func inferFormat(url, mime string) types.ModelFormat {
	if f, ok := FormatFromExtension(CleanURL(url)); ok {
		return f
	}
	if f, ok := FormatFromMIME(mime); ok {
		return f
	}
	return ""
}

func storageInfo(uri models.TokenURI) types.StorageInfo {
	info := types.StorageInfo{Kind: types.StorageUnknown, Gateway: uri.Gateway}
	ref := firstNonEmpty(uri.Raw, uri.Gateway)
	switch {
	case ref == "":
	case isContentAddressed(ref):
		cp, _ := ParseContentPath(ref)
		info.Kind = types.StorageIPFS
		info.Hash = cp.Hash
	case strings.HasPrefix(strings.ToLower(ref), "http://"), strings.HasPrefix(strings.ToLower(ref), "https://"):
		info.Kind = types.StorageHTTP
	}
	return info
}

func isContentAddressed(ref string) bool {
	_, ok := ParseContentPath(ref)
	return ok
}

// normalizeAddress returns the EIP-55 form of a hex address, or the input
// unchanged when it is not one.
func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if common.IsHexAddress(addr) {
		return common.HexToAddress(addr).Hex()
	}
	return addr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
