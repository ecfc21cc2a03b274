package types

import (
	"fmt"
	"time"
)

// RecordType discriminates the payload carried by a campaign asset
type RecordType string

const (
	RecordNPC          RecordType = "npc"
	RecordLocation     RecordType = "location"
	RecordPlot         RecordType = "plot"
	RecordSessionEvent RecordType = "session_event"
)

// RecordTypes lists every known record type in display order
var RecordTypes = []RecordType{RecordNPC, RecordLocation, RecordPlot, RecordSessionEvent}

// ParseRecordType converts a stored or user-supplied value into a RecordType
func ParseRecordType(s string) (RecordType, error) {
	if s == "" {
		return "", ErrMissingRecordType
	}
	for _, rt := range RecordTypes {
		if string(rt) == s {
			return rt, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRecordType, s)
}

// PlotStatus is the lifecycle state of a plot thread
type PlotStatus string

const (
	PlotActive   PlotStatus = "active"
	PlotDormant  PlotStatus = "dormant"
	PlotResolved PlotStatus = "resolved"
)

// CampaignAsset is a searchable record scoped to one campaign
type CampaignAsset struct {
	// Identification
	ID         string
	CampaignID string // Never changes after creation

	// Free text (all optional)
	Name          string
	GMSummary     string
	GMNotes       string
	PlayerSummary string
	PlayerNotes   string

	// Typed payload
	RecordType RecordType
	TypeData   TypeData

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks identity fields and the payload invariant
func (a *CampaignAsset) Validate() error {
	if a.CampaignID == "" {
		return ErrMissingCampaignID
	}
	if _, err := ParseRecordType(string(a.RecordType)); err != nil {
		return err
	}
	return a.TypeData.Validate(a.RecordType)
}

// SearchText concatenates the free-text fields used for embedding and display
func (a *CampaignAsset) SearchText() string {
	parts := make([]string, 0, 6)
	for _, s := range []string{a.Name, a.GMSummary, a.PlayerSummary, a.GMNotes, a.PlayerNotes} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if extra := a.TypeData.describe(); extra != "" {
		parts = append(parts, extra)
	}
	return joinLines(parts)
}

func joinLines(parts []string) string {
	n := 0
	for _, p := range parts {
		n += len(p) + 1
	}
	buf := make([]byte, 0, n)
	for i, p := range parts {
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, p...)
	}
	return string(buf)
}
