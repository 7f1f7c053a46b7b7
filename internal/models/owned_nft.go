// Package models holds the wire shapes returned by the NFT indexing provider.
// Records are decoded leniently: provider payloads are inconsistent between
// API versions and collections, so fields of the wrong type decode to their
// zero value instead of failing the whole page.
package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ContractRef identifies the collection contract of a token
type ContractRef struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol,omitempty"`
}

// TokenURI is the token's metadata location as reported by the provider
type TokenURI struct {
	Raw     string `json:"raw"`
	Gateway string `json:"gateway"`
}

// Media is one provider-cached media entry of a token
type Media struct {
	URI       string `json:"uri"`
	Format    string `json:"format"`
	Thumbnail string `json:"thumbnail"`
}

// OwnedNFT is one record of an ownership query
type OwnedNFT struct {
	TokenID     string      `json:"tokenId"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Contract    ContractRef `json:"contract"`
	TokenURI    TokenURI    `json:"tokenUri"`
	Media       []Media     `json:"media"`
	Metadata    Tree        `json:"metadata"`
}

// UnmarshalJSON decodes a provider record of either the v2 or the v3 shape
func (n *OwnedNFT) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("owned nft is not an object: %w", err)
	}
	*n = OwnedNFTFromTree(raw)
	return nil
}

// OwnedNFTFromTree extracts the typed fields of a record from its raw tree
func OwnedNFTFromTree(raw Tree) OwnedNFT {
	nft := OwnedNFT{
		TokenID:     raw.FirstString([]string{"tokenId"}, []string{"id", "tokenId"}),
		Title:       raw.FirstString([]string{"title"}, []string{"name"}),
		Description: raw.String("description"),
		Contract: ContractRef{
			Address: raw.String("contract", "address"),
			Name: raw.FirstString(
				[]string{"contract", "name"},
				[]string{"contractMetadata", "name"},
			),
			Symbol: raw.FirstString(
				[]string{"contract", "symbol"},
				[]string{"contractMetadata", "symbol"},
			),
		},
		Metadata: decodeMetadata(raw),
	}

	switch uri := raw.Get("tokenUri").(type) {
	case string:
		nft.TokenURI = TokenURI{Raw: uri, Gateway: uri}
	case map[string]any:
		t := Tree(uri)
		nft.TokenURI = TokenURI{Raw: t.String("raw"), Gateway: t.String("gateway")}
	}

	for _, item := range raw.List("media") {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		t := Tree(m)
		nft.Media = append(nft.Media, Media{
			URI:       t.FirstString([]string{"uri"}, []string{"gateway"}, []string{"raw"}),
			Format:    t.String("format"),
			Thumbnail: t.String("thumbnail"),
		})
	}

	// v3 responses carry the preview under image instead of media
	if len(nft.Media) == 0 {
		if img := raw.Map("image"); img != nil {
			nft.Media = append(nft.Media, Media{
				URI:       img.FirstString([]string{"originalUrl"}, []string{"cachedUrl"}),
				Format:    img.String("contentType"),
				Thumbnail: img.String("thumbnailUrl"),
			})
		}
	}

	return nft
}

// decodeMetadata returns the token metadata object. Some collections serve
// metadata as a JSON-encoded string; those are decoded when possible.
func decodeMetadata(raw Tree) Tree {
	for _, path := range [][]string{{"metadata"}, {"raw", "metadata"}} {
		switch md := raw.Get(path...).(type) {
		case map[string]any:
			return md
		case string:
			var decoded map[string]any
			if err := json.Unmarshal([]byte(md), &decoded); err == nil {
				return decoded
			}
		}
	}
	return Tree{}
}

// OwnedNFTPage is one page of an ownership query
type OwnedNFTPage struct {
	OwnedNFTs  []OwnedNFT `json:"ownedNfts"`
	PageKey    string     `json:"pageKey,omitempty"`
	TotalCount int        `json:"totalCount"`
	// Skipped counts records that were not JSON objects
	Skipped int `json:"-"`
}

// UnmarshalJSON decodes a page, skipping malformed records
func (p *OwnedNFTPage) UnmarshalJSON(b []byte) error {
	var aux struct {
		OwnedNFTs  []json.RawMessage `json:"ownedNfts"`
		PageKey    any               `json:"pageKey"`
		TotalCount any               `json:"totalCount"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	page := OwnedNFTPage{
		OwnedNFTs: make([]OwnedNFT, 0, len(aux.OwnedNFTs)),
		PageKey:   AsString(aux.PageKey),
	}
	if n, err := strconv.Atoi(AsString(aux.TotalCount)); err == nil {
		page.TotalCount = n
	}

	for _, rec := range aux.OwnedNFTs {
		var nft OwnedNFT
		if err := json.Unmarshal(rec, &nft); err != nil {
			page.Skipped++
			continue
		}
		page.OwnedNFTs = append(page.OwnedNFTs, nft)
	}

	*p = page
	return nil
}

// HasNextPage reports whether the provider returned a continuation cursor
func (p *OwnedNFTPage) HasNextPage() bool {
	return p.PageKey != ""
}
