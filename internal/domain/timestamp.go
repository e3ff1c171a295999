package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Layouts accepted for backend timestamps. Values without an offset are UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses a backend timestamp. An empty string is the zero time.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func decodeTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, err
	}
	return ParseTimestamp(s)
}

// UnmarshalJSON accepts createdAtUtc with or without a UTC offset.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var w struct {
		plain
		CreatedAt json.RawMessage `json:"createdAtUtc"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	at, err := decodeTimestamp(w.CreatedAt)
	if err != nil {
		return fmt.Errorf("message %s: %w", w.ID, err)
	}
	*m = Message(w.plain)
	m.CreatedAt = at
	return nil
}

// UnmarshalJSON accepts updatedAtUtc with or without a UTC offset.
func (c *ConversationListItem) UnmarshalJSON(data []byte) error {
	type plain ConversationListItem
	var w struct {
		plain
		UpdatedAt json.RawMessage `json:"updatedAtUtc"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	at, err := decodeTimestamp(w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("conversation %s: %w", w.ID, err)
	}
	*c = ConversationListItem(w.plain)
	c.UpdatedAt = at
	return nil
}
