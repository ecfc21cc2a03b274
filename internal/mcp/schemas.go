package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func campaignIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Campaign UUID that scopes the operation",
	}
}

// searchAssetsTool returns the tool definition for search_assets
func searchAssetsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_assets",
		Description: "Search a campaign's NPCs, locations, plots and session events with natural language and keywords",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"campaign_id": campaignIDProperty(),
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language query for semantic search",
				},
				"keywords": map[string]interface{}{
					"type":        "string",
					"description": "Keywords for full-text search (defaults to query)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"min_score": map[string]interface{}{
					"type":        "number",
					"description": "Drop results whose normalized score is below this value (0-1)",
					"default":     0,
					"minimum":     0,
					"maximum":     1,
				},
			},
			Required: []string{"campaign_id"},
		},
	}
}

// indexAssetsTool returns the tool definition for index_assets
func indexAssetsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_assets",
		Description: "Store campaign assets and generate their embeddings so they become searchable",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"campaign_id": campaignIDProperty(),
				"assets": map[string]interface{}{
					"type":        "array",
					"description": "Assets to create or update",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"id":             map[string]interface{}{"type": "string", "description": "Existing asset UUID; omit to create"},
							"name":           map[string]interface{}{"type": "string"},
							"gm_summary":     map[string]interface{}{"type": "string"},
							"gm_notes":       map[string]interface{}{"type": "string"},
							"player_summary": map[string]interface{}{"type": "string"},
							"player_notes":   map[string]interface{}{"type": "string"},
							"record_type": map[string]interface{}{
								"type": "string",
								"enum": []string{"npc", "location", "plot", "session_event"},
							},
							"type_data": map[string]interface{}{
								"type":        "object",
								"description": "Exactly one of npc, location, plot or session_event, matching record_type",
							},
						},
						"required": []string{"record_type", "type_data"},
					},
				},
			},
			Required: []string{"campaign_id", "assets"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Get index counts and search quality statistics for a campaign",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"campaign_id": campaignIDProperty(),
			},
			Required: []string{"campaign_id"},
		},
	}
}
