// Package types provides common type definitions for the NFT 3D-model scanner.
package types

// ModelFormat represents a 3D asset format
type ModelFormat string

const (
	// FormatGLB represents binary glTF
	FormatGLB ModelFormat = "glb"
	// FormatGLTF represents JSON glTF
	FormatGLTF ModelFormat = "gltf"
	// FormatVRM represents a VRM avatar (glTF based)
	FormatVRM ModelFormat = "vrm"
	// FormatUnknown is used when no 3D asset was detected
	FormatUnknown ModelFormat = "unknown"
)

// formatPriority ranks detected formats; lower ranks first.
var formatPriority = map[ModelFormat]int{
	FormatGLB:  0,
	FormatVRM:  1,
	FormatGLTF: 2,
}

// Priority returns the rank of a format and whether it is ranked at all.
func (f ModelFormat) Priority() (int, bool) {
	p, ok := formatPriority[f]
	return p, ok
}

// Is3D reports whether the format is one of the renderable 3D formats
func (f ModelFormat) Is3D() bool {
	_, ok := formatPriority[f]
	return ok
}

// StorageKind represents how an asset is addressed
type StorageKind string

const (
	// StorageIPFS represents content-addressed storage
	StorageIPFS StorageKind = "IPFS"
	// StorageHTTP represents a location-addressed URL
	StorageHTTP StorageKind = "HTTP"
	// StorageUnknown is used when the token URI is missing
	StorageUnknown StorageKind = "unknown"
)

// ModelURLCandidate is one fetchable 3D asset reference
type ModelURLCandidate struct {
	URL    string      `json:"url"`
	Format ModelFormat `json:"format"`
}

// MeshStats are produced by the renderer after a model has been loaded
type MeshStats struct {
	Vertices  int `json:"vertices"`
	Triangles int `json:"triangles"`
	Materials int `json:"materials"`
}

// TechnicalInfo holds lazily populated mesh statistics
type TechnicalInfo struct {
	Triangles int  `json:"triangles"`
	Vertices  int  `json:"vertices"`
	Materials int  `json:"materials"`
	Loaded    bool `json:"loaded"`
}

// StorageInfo describes where the asset lives
type StorageInfo struct {
	Kind    StorageKind `json:"type"`
	Hash    string      `json:"hash"`
	URL     string      `json:"url,omitempty"`
	Gateway string      `json:"gateway"`
}

// AssetRecord is the normalized representation of one NFT
type AssetRecord struct {
	TokenID         string              `json:"tokenId"`
	ContractAddress string              `json:"contractAddress"`
	Name            string              `json:"name"`
	Description     string              `json:"description"`
	Thumbnail       string              `json:"thumbnail"`
	Collection      string              `json:"collection"`
	Creator         string              `json:"creator"`
	Format          ModelFormat         `json:"format"`
	Network         NetworkInfo         `json:"network"`
	Technical       TechnicalInfo       `json:"technical"`
	Storage         StorageInfo         `json:"storage"`
	ModelURLs       []ModelURLCandidate `json:"modelUrls"`
}

// Has3DModel reports whether at least one model candidate was detected
func (a *AssetRecord) Has3DModel() bool {
	return len(a.ModelURLs) > 0
}

// ApplyMeshStats stores renderer statistics on the record
func (a *AssetRecord) ApplyMeshStats(stats MeshStats) {
	a.Technical = TechnicalInfo{
		Triangles: stats.Triangles,
		Vertices:  stats.Vertices,
		Materials: stats.Materials,
		Loaded:    true,
	}
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
