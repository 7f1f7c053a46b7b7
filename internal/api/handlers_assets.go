package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	apperrors "github.com/nft3d-scanner/internal/errors"
	"github.com/nft3d-scanner/internal/types"
)

// Result statuses of an asset listing
const (
	StatusOK    = "ok"
	StatusEmpty = "empty"
)

// AssetListResponse is the body of GET /api/addresses/{address}/assets
type AssetListResponse struct {
	Address string              `json:"address"`
	ChainID types.ChainID       `json:"chainId"`
	Query   string              `json:"query,omitempty"`
	Status  string              `json:"status"`
	Count   int                 `json:"count"`
	Assets  []types.AssetRecord `json:"assets"`
}

// networkFromRequest reads the chain query parameter, defaulting to Ethereum
func networkFromRequest(r *http.Request) (types.NetworkInfo, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("chain"))
	if raw == "" {
		n, _ := types.LookupNetwork(types.ChainEthereum)
		return n, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return types.NetworkInfo{}, apperrors.NewInvalidParameterError("chain", "must be a numeric chain id")
	}
	n, ok := types.LookupNetwork(types.ChainID(id))
	if !ok {
		return types.NetworkInfo{}, apperrors.NewUnsupportedNetworkError(raw)
	}
	return n, nil
}

// handleListAssets handles GET /api/addresses/{address}/assets
func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	network, err := networkFromRequest(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	assets, err := s.discovery.Discover(r.Context(), address, network, query)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	status := StatusOK
	if len(assets) == 0 {
		status = StatusEmpty
		assets = []types.AssetRecord{}
	}
	respondJSON(w, http.StatusOK, AssetListResponse{
		Address: address,
		ChainID: network.ID,
		Query:   query,
		Status:  status,
		Count:   len(assets),
		Assets:  assets,
	})
}

// handleGetAsset handles GET /api/addresses/{address}/assets/{contract}/{tokenId}
func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	network, err := networkFromRequest(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	asset, err := s.discovery.FindAsset(r.Context(), vars["address"], network, vars["contract"], vars["tokenId"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, asset)
}

// handleRecordTechnical handles POST .../assets/{contract}/{tokenId}/technical
func (s *Server) handleRecordTechnical(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	network, err := networkFromRequest(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	var stats types.MeshStats
	if err := parseJSONBody(r, &stats); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if stats.Vertices < 0 || stats.Triangles < 0 || stats.Materials < 0 {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Mesh statistics cannot be negative", nil)
		return
	}

	asset, err := s.viewer.RecordTechnical(r.Context(), vars["address"], network, vars["contract"], vars["tokenId"], stats)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, asset)
}

// handleInvalidateAddress handles DELETE /api/addresses/{address}/cache
func (s *Server) handleInvalidateAddress(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	deleted, err := s.discovery.Invalidate(r.Context(), address)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"address": address,
		"deleted": deleted,
	})
}
