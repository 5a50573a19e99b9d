package model

import "time"

// Metadata is the free-form bag attached to every message.
type Metadata map[string]any

// FirstText returns the first key whose value coerces to non-empty text.
func (m Metadata) FirstText(keys ...string) string {
	for _, k := range keys {
		if s := CoerceText(m[k]); s != "" {
			return s
		}
	}
	return ""
}

// Map returns the nested object stored under key, or nil.
func (m Metadata) Map(key string) Metadata {
	switch t := m[key].(type) {
	case map[string]any:
		return Metadata(t)
	case Metadata:
		return t
	}
	return nil
}

// OutreachState is the run id and status an assistant message reports for a
// background outreach run. An empty Status means the backend sent none.
type OutreachState struct {
	RunID  string `json:"run_id"`
	Status string `json:"status,omitempty"`
}

// PreferredName is kept in the user memory record's known preferences.
type PreferredName struct {
	Name      string
	UpdatedAt time.Time
}

// Memory is the slice of the long-lived user memory record the chat reads.
type Memory struct {
	UserID            string
	PreferredName     *PreferredName
	TotalInteractions int
	LastInteractionAt *time.Time
}

func (m *Memory) Name() string {
	if m == nil || m.PreferredName == nil {
		return ""
	}
	return m.PreferredName.Name
}
