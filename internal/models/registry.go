package models

import "time"

// RegistryEntry indexes document metadata per session for fast filtering.
// The authoritative rows live in Postgres; the registry is a convenience
// mirror and may be rebuilt at any time. DocumentID points at the backing
// row; ParentID, when set, names the original document this entry was
// derived from.
type RegistryEntry struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	SessionID  string    `json:"session_id"`
	DocumentID string    `json:"document_id,omitempty"`
	Name       string    `json:"name"`
	Source     string    `json:"source"`
	AxisLabel  string    `json:"axis_label"`
	ParentID   string    `json:"parent_id,omitempty"`
	AddedAt    time.Time `json:"added_at"`
}

// Registry entry sources.
const (
	RegistrySourceUpload    = "upload"
	RegistrySourceGenerated = "generated"
	RegistrySourceDerived   = "derived"
)

// RegistryFilter narrows registry listings.
type RegistryFilter struct {
	SessionID string
	Source    string
	AxisLabel string
	ParentID  string
}

// Matches reports whether the entry satisfies every set filter field.
func (f RegistryFilter) Matches(entry RegistryEntry) bool {
	if f.SessionID != "" && entry.SessionID != f.SessionID {
		return false
	}
	if f.Source != "" && entry.Source != f.Source {
		return false
	}
	if f.AxisLabel != "" && entry.AxisLabel != f.AxisLabel {
		return false
	}
	if f.ParentID != "" && entry.ParentID != f.ParentID {
		return false
	}
	return true
}
