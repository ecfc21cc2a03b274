// Package types provides shared type definitions for the campaign search engine.
//
// This package defines the domain types used across storage, search, telemetry,
// and the MCP surface: campaign assets, their typed payloads, and ranked results.
//
// # Campaign Assets
//
// CampaignAsset is a versioned record owned by exactly one campaign. The
// RecordType discriminates the TypeData payload, and exactly one variant is
// populated:
//
//	asset := types.CampaignAsset{
//	    CampaignID: campaignID,
//	    Name:       "Captain Mirela Vos",
//	    RecordType: types.RecordNPC,
//	    TypeData: types.TypeData{
//	        NPC: &types.NPCData{Role: "smuggler", Traits: []string{"loyal", "reckless"}},
//	    },
//	}
//
// # Validation
//
// The payload invariant is checked with TypeData.Validate:
//
//	if err := asset.Validate(); err != nil {
//	    // errors.Is(err, types.ErrTypeDataMismatch) ...
//	}
//
// # Search Results
//
// RankedResult pairs an asset with its fused relevance score. Scores are
// normalized to [0, 1], with 1.0 being the best match of the query.
//
// SearchTimings records the duration of each search phase so callers can see
// where time was spent without enabling telemetry.
package types
