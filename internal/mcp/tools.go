package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/campaignsearch/internal/searcher"
	"github.com/dshills/campaignsearch/internal/storage"
	"github.com/dshills/campaignsearch/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams        = -32602 // Invalid method parameters
	ErrorCodeInternalError        = -32603 // Internal JSON-RPC error
	ErrorCodeCampaignNotFound     = -32001 // Campaign has never been indexed
	ErrorCodeIndexingInProgress   = -32002 // Another indexing run holds the campaign
	ErrorCodeEmbeddingUnavailable = -32003 // Query could not be embedded
	ErrorCodeEmptyQuery           = -32004 // Neither query nor keywords given
)

// maxReportedErrors caps the indexing errors echoed back to the client
const maxReportedErrors = 5

// assetInput is the wire shape of an asset in index_assets
type assetInput struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	GMSummary     string         `json:"gm_summary"`
	GMNotes       string         `json:"gm_notes"`
	PlayerSummary string         `json:"player_summary"`
	PlayerNotes   string         `json:"player_notes"`
	RecordType    string         `json:"record_type"`
	TypeData      types.TypeData `json:"type_data"`
}

func (in assetInput) asset(campaignID uuid.UUID) types.CampaignAsset {
	return types.CampaignAsset{
		ID:            in.ID,
		CampaignID:    campaignID.String(),
		Name:          in.Name,
		GMSummary:     in.GMSummary,
		GMNotes:       in.GMNotes,
		PlayerSummary: in.PlayerSummary,
		PlayerNotes:   in.PlayerNotes,
		RecordType:    types.RecordType(in.RecordType),
		TypeData:      in.TypeData,
	}
}

// handleSearchAssets handles the search_assets tool invocation
func (s *Server) handleSearchAssets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	campaignID, err := parseCampaignID(args)
	if err != nil {
		return nil, err
	}

	query := strings.TrimSpace(getStringDefault(args, "query", ""))
	keywords := strings.TrimSpace(getStringDefault(args, "keywords", query))
	if query == "" && keywords == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query or keywords is required", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", searcher.DefaultLimit)
	if limit < 1 || limit > searcher.MaxLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	minScore := getFloatDefault(args, "min_score", 0)
	if minScore < 0 || minScore > 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "min_score must be between 0 and 1", map[string]interface{}{
			"param": "min_score",
			"value": minScore,
		})
	}

	if _, err := s.storage.GetCampaign(ctx, campaignID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, newMCPError(ErrorCodeCampaignNotFound, "campaign not indexed", map[string]interface{}{
				"campaign_id": campaignID.String(),
				"hint":        "use index_assets to index this campaign",
			})
		}
		return nil, newMCPError(ErrorCodeInternalError, "failed to load campaign", map[string]interface{}{
			"error": err.Error(),
		})
	}

	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{
		CampaignID: campaignID,
		Query:      query,
		Keywords:   keywords,
		Limit:      limit,
		MinScore:   minScore,
	})
	if err != nil {
		return nil, s.searchError(err)
	}

	results := make([]map[string]interface{}, 0, len(resp.Assets))
	for _, r := range resp.Assets {
		results = append(results, formatResult(r))
	}

	response := map[string]interface{}{
		"results":    results,
		"count":      len(results),
		"mode":       string(resp.Mode),
		"timings_ms": resp.Timings.Milliseconds(),
	}
	if resp.Dropped > 0 {
		response["dropped"] = resp.Dropped
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// searchError maps searcher failures onto MCP error codes
func (s *Server) searchError(err error) error {
	data := map[string]interface{}{"error": err.Error()}
	switch {
	case errors.Is(err, searcher.ErrEmptyQuery):
		return newMCPError(ErrorCodeEmptyQuery, "query or keywords is required", data)
	case errors.Is(err, searcher.ErrInvalidMinScore), errors.Is(err, searcher.ErrCampaignRequired):
		return newMCPError(ErrorCodeInvalidParams, "invalid search parameters", data)
	case errors.Is(err, searcher.ErrEmbeddingFailed):
		return newMCPError(ErrorCodeEmbeddingUnavailable, "query embedding failed", data)
	}
	s.logger.Error("search failed", "error", err)
	return newMCPError(ErrorCodeInternalError, "search failed", data)
}

// handleIndexAssets handles the index_assets tool invocation
func (s *Server) handleIndexAssets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	campaignID, err := parseCampaignID(args)
	if err != nil {
		return nil, err
	}

	inputs, err := parseAssets(args)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid assets", map[string]interface{}{
			"param":  "assets",
			"reason": err.Error(),
		})
	}

	if !s.locks.TryAcquire(campaignID) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress for campaign", map[string]interface{}{
			"campaign_id": campaignID.String(),
		})
	}
	defer s.locks.Release(campaignID)

	assets := make([]types.CampaignAsset, len(inputs))
	for i, in := range inputs {
		assets[i] = in.asset(campaignID)
	}

	cfg := s.indexConfig
	stats, err := s.indexer.IndexAssets(ctx, campaignID, assets, &cfg)
	if err != nil {
		s.logger.Error("indexing failed", "campaign_id", campaignID.String(), "error", err)
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// IDs are written back for assets that were stored
	ids := make([]string, len(assets))
	for i := range assets {
		ids[i] = assets[i].ID
	}

	response := map[string]interface{}{
		"indexed":            true,
		"assets_indexed":     stats.AssetsIndexed,
		"assets_skipped":     stats.AssetsSkipped,
		"assets_failed":      stats.AssetsFailed,
		"embeddings_created": stats.EmbeddingsCreated,
		"embeddings_failed":  stats.EmbeddingsFailed,
		"asset_ids":          ids,
		"duration_ms":        stats.Duration.Milliseconds(),
	}

	if len(stats.ErrorMessages) > 0 {
		errorCount := len(stats.ErrorMessages)
		if errorCount > maxReportedErrors {
			response["errors"] = stats.ErrorMessages[:maxReportedErrors]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	campaignID, err := parseCampaignID(args)
	if err != nil {
		return nil, err
	}

	status, err := s.storage.GetStatus(ctx, campaignID)
	if errors.Is(err, storage.ErrNotFound) {
		response := map[string]interface{}{
			"indexed":     false,
			"campaign_id": campaignID.String(),
			"message":     "Campaign not indexed. Use index_assets tool to index this campaign.",
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	stats, err := s.storage.GetSearchStats(ctx, campaignID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get search statistics", map[string]interface{}{
			"error": err.Error(),
		})
	}

	search := map[string]interface{}{
		"searches":         stats.Searches,
		"sampled":          stats.Sampled,
		"hit_rate":         stats.HitRate(),
		"avg_execution_ms": stats.AvgExecutionMs,
	}
	if stats.AvgPrecisionAtK != nil {
		search["avg_precision_at_k"] = *stats.AvgPrecisionAtK
	}
	if stats.AvgRecallAtK != nil {
		search["avg_recall_at_k"] = *stats.AvgRecallAtK
	}

	response := map[string]interface{}{
		"indexed": true,
		"campaign": map[string]interface{}{
			"id":         status.Campaign.ID.String(),
			"name":       status.Campaign.Name,
			"created_at": status.Campaign.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		},
		"statistics": map[string]interface{}{
			"assets_count":     status.AssetsCount,
			"assets_by_type":   status.AssetsByType,
			"embeddings_count": status.EmbeddingsCount,
			"index_size_mb":    fmt.Sprintf("%.2f", status.IndexSizeMB),
		},
		"health": map[string]interface{}{
			"database_accessible":  status.Health.DatabaseAccessible,
			"embeddings_available": status.Health.EmbeddingsAvailable,
			"fts_index_built":      status.Health.FTSIndexBuilt,
		},
		"search": search,
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// formatResult renders one ranked asset for the client
func formatResult(r types.RankedResult) map[string]interface{} {
	a := r.Asset
	out := map[string]interface{}{
		"id":          a.ID,
		"name":        a.Name,
		"record_type": string(a.RecordType),
		"score":       r.Score,
		"type_data":   a.TypeData,
	}
	for key, val := range map[string]string{
		"gm_summary":     a.GMSummary,
		"gm_notes":       a.GMNotes,
		"player_summary": a.PlayerSummary,
		"player_notes":   a.PlayerNotes,
	} {
		if val != "" {
			out[key] = val
		}
	}
	if !a.UpdatedAt.IsZero() {
		out["updated_at"] = a.UpdatedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return out
}

// parseCampaignID reads and validates the campaign_id argument
func parseCampaignID(args map[string]interface{}) (uuid.UUID, error) {
	raw, ok := args["campaign_id"].(string)
	if !ok || raw == "" {
		return uuid.Nil, newMCPError(ErrorCodeInvalidParams, "campaign_id parameter is required", map[string]interface{}{
			"param":  "campaign_id",
			"reason": "missing or empty",
		})
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, newMCPError(ErrorCodeInvalidParams, "invalid campaign_id", map[string]interface{}{
			"param":  "campaign_id",
			"reason": "not a UUID",
		})
	}
	return id, nil
}

// parseAssets decodes the assets argument through JSON so that type_data
// lands in its typed variant
func parseAssets(args map[string]interface{}) ([]assetInput, error) {
	raw, ok := args["assets"].([]interface{})
	if !ok {
		return nil, errors.New("assets must be an array")
	}
	if len(raw) == 0 {
		return nil, errors.New("assets is empty")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var inputs []assetInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, err
	}
	return inputs, nil
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a number parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	if val, ok := args[key].(int); ok {
		return float64(val)
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
