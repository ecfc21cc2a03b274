// Package mcp implements the Model Context Protocol (MCP) server for campaign search.
//
// The server exposes three tools to AI game-master assistants:
//   - search_assets: Hybrid semantic and keyword search over a campaign
//   - index_assets: Store assets and generate their embeddings
//   - get_status: Index counts and search quality statistics
//
// MCP is JSON-RPC 2.0 over stdio. The server reads requests from stdin and
// writes responses to stdout, so logs must go to stderr.
//
// # Tool: search_assets
//
//	{
//	  "name": "search_assets",
//	  "arguments": {
//	    "campaign_id": "6f1c...",
//	    "query": "who controls the docks",
//	    "keywords": "smuggler",
//	    "limit": 10,
//	    "min_score": 0.2
//	  }
//	}
//
// keywords defaults to query. Passing an empty keywords string runs the
// vector channel only; omitting query runs the keyword channel only.
//
// # Tool: index_assets
//
// Assets carry a record_type and a type_data object holding exactly the
// matching variant:
//
//	{"name": "Captain Vex", "record_type": "npc",
//	 "type_data": {"npc": {"role": "smuggler"}}}
//
// The response lists the asset IDs in input order, including those assigned
// to new assets. Only one indexing run per campaign is allowed at a time.
//
// # Errors
//
// Tool failures are returned as *MCPError with one of the ErrorCode values.
package mcp
