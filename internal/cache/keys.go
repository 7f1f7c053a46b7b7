package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/nft3d-scanner/internal/types"
)

// KeyClass is the purpose tag at the start of a cache key
type KeyClass string

const (
	// ClassNFTMetadata holds discovery results per address and chain
	ClassNFTMetadata KeyClass = "nfts"
	// ClassAssetPreview holds resolved model URLs
	ClassAssetPreview KeyClass = "preview"
	// ClassWalletData holds short lived wallet lookups
	ClassWalletData KeyClass = "wallet"
)

// ClassOf returns the class of key. Keys without a known tag are treated
// as NFT metadata.
func ClassOf(key string) KeyClass {
	tag, _, _ := strings.Cut(key, ":")
	switch KeyClass(tag) {
	case ClassAssetPreview:
		return ClassAssetPreview
	case ClassWalletData:
		return ClassWalletData
	default:
		return ClassNFTMetadata
	}
}

// TTLs maps each key class to its validity period
type TTLs struct {
	NFTMetadata  time.Duration
	AssetPreview time.Duration
	WalletData   time.Duration
}

// DefaultTTLs returns the stock validity periods
func DefaultTTLs() TTLs {
	return TTLs{
		NFTMetadata:  time.Hour,
		AssetPreview: 24 * time.Hour,
		WalletData:   5 * time.Minute,
	}
}

// For returns the TTL that applies to key
func (t TTLs) For(key string) time.Duration {
	switch ClassOf(key) {
	case ClassAssetPreview:
		return t.AssetPreview
	case ClassWalletData:
		return t.WalletData
	default:
		return t.NFTMetadata
	}
}

// NFTsKey builds the discovery result key.
// Format: nfts:<address>:<chainId>[:<query>]
func NFTsKey(address string, chain types.ChainID, query string) string {
	key := fmt.Sprintf("%s%d", AddressPrefix(address), chain)
	if q := strings.TrimSpace(query); q != "" {
		key += ":" + q
	}
	return key
}

// AddressPrefix is the prefix shared by every discovery key of address
func AddressPrefix(address string) string {
	return string(ClassNFTMetadata) + ":" + strings.ToLower(address) + ":"
}

// PreviewKey builds the key for a resolved model URL
func PreviewKey(url string) string {
	return string(ClassAssetPreview) + ":" + url
}

// WalletKey builds the key for wallet level data of address on chain
func WalletKey(address string, chain types.ChainID) string {
	return fmt.Sprintf("%s:%s:%d", ClassWalletData, strings.ToLower(address), chain)
}
