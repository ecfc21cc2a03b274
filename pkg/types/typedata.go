package types

import (
	"fmt"
	"strings"
)

// TypeData is a tagged union; exactly one field is set and it must match the
// asset's RecordType.
type TypeData struct {
	NPC          *NPCData          `json:"npc,omitempty"`
	Location     *LocationData     `json:"location,omitempty"`
	Plot         *PlotData         `json:"plot,omitempty"`
	SessionEvent *SessionEventData `json:"session_event,omitempty"`
}

// NPCData holds character traits
type NPCData struct {
	Role        string   `json:"role,omitempty"`
	Disposition string   `json:"disposition,omitempty"`
	Faction     string   `json:"faction,omitempty"`
	Traits      []string `json:"traits,omitempty"`
}

// LocationData holds place traits
type LocationData struct {
	Region  string   `json:"region,omitempty"`
	Terrain string   `json:"terrain,omitempty"`
	Traits  []string `json:"traits,omitempty"`
}

// PlotData holds plot thread status and urgency (1 = background, 5 = imminent)
type PlotData struct {
	Status  PlotStatus `json:"status"`
	Urgency int        `json:"urgency"`
}

// SessionEventData ties an event to the session it happened in
type SessionEventData struct {
	SessionNumber int    `json:"session_number"`
	InGameDate    string `json:"in_game_date,omitempty"`
}

// Variant returns the record type of the populated payload and how many
// payloads are populated.
func (t TypeData) Variant() (RecordType, int) {
	var rt RecordType
	n := 0
	if t.NPC != nil {
		rt, n = RecordNPC, n+1
	}
	if t.Location != nil {
		rt, n = RecordLocation, n+1
	}
	if t.Plot != nil {
		rt, n = RecordPlot, n+1
	}
	if t.SessionEvent != nil {
		rt, n = RecordSessionEvent, n+1
	}
	return rt, n
}

// Validate enforces the one-variant-matching-record-type invariant
func (t TypeData) Validate(recordType RecordType) error {
	variant, n := t.Variant()
	switch {
	case n == 0:
		return ErrTypeDataMissing
	case n > 1:
		return fmt.Errorf("%w: %d payloads set", ErrTypeDataMismatch, n)
	case variant != recordType:
		return fmt.Errorf("%w: have %s, record type %s", ErrTypeDataMismatch, variant, recordType)
	}

	if t.Plot != nil {
		switch t.Plot.Status {
		case PlotActive, PlotDormant, PlotResolved:
		default:
			return fmt.Errorf("%w: %q", ErrInvalidPlotStatus, t.Plot.Status)
		}
		if t.Plot.Urgency < 1 || t.Plot.Urgency > 5 {
			return ErrInvalidUrgency
		}
	}
	return nil
}

// describe renders the payload as searchable text
func (t TypeData) describe() string {
	switch {
	case t.NPC != nil:
		return joinNonEmpty(t.NPC.Role, t.NPC.Disposition, t.NPC.Faction, strings.Join(t.NPC.Traits, ", "))
	case t.Location != nil:
		return joinNonEmpty(t.Location.Region, t.Location.Terrain, strings.Join(t.Location.Traits, ", "))
	case t.Plot != nil:
		return joinNonEmpty(string(t.Plot.Status), fmt.Sprintf("urgency %d", t.Plot.Urgency))
	case t.SessionEvent != nil:
		return joinNonEmpty(fmt.Sprintf("session %d", t.SessionEvent.SessionNumber), t.SessionEvent.InGameDate)
	}
	return ""
}

func joinNonEmpty(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "; ")
}
