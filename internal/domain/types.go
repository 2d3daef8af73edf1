package domain

import (
	"encoding/json"
	"maps"
	"time"
)

// SchemaVersion is stamped on every document written by the store
const SchemaVersion = "1.0.0"

// Item represents one entry of the list
type Item struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
}

// Settings holds user preferences. The store never interprets them; keys
// other than theme and animations are kept in Extra and written back as is.
type Settings struct {
	Theme      string
	Animations bool
	Extra      map[string]json.RawMessage
}

type knownSettings struct {
	Theme      string `json:"theme"`
	Animations bool   `json:"animations"`
}

// UnmarshalJSON lays the object in b over s
func (s *Settings) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	known := knownSettings{Theme: s.Theme, Animations: s.Animations}
	if err := json.Unmarshal(b, &known); err != nil {
		return err
	}
	delete(all, "theme")
	delete(all, "animations")

	s.Theme, s.Animations = known.Theme, known.Animations
	s.Extra = nil
	if len(all) > 0 {
		s.Extra = all
	}
	return nil
}

func (s Settings) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extra)+2)
	for k, v := range s.Extra {
		out[k] = v
	}
	out["theme"] = s.Theme
	out["animations"] = s.Animations
	return json.Marshal(out)
}

// Document is the single persisted aggregate
type Document struct {
	Version     string    `json:"version"`
	Items       []Item    `json:"items"`
	LastUpdated time.Time `json:"lastUpdated"`
	Settings    Settings  `json:"settings"`
}

// ItemUpdate carries the fields to change on an item; nil fields are left alone
type ItemUpdate struct {
	Text      *string    `json:"text,omitempty"`
	Completed *bool      `json:"completed,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// DefaultSettings returns the preferences of a fresh document
func DefaultSettings() Settings {
	return Settings{Theme: "light", Animations: true}
}

// NewDocument returns an empty document stamped at now
func NewDocument(now time.Time) *Document {
	return &Document{
		Version:     SchemaVersion,
		Items:       []Item{},
		LastUpdated: now,
		Settings:    DefaultSettings(),
	}
}

// Clone returns a copy that shares no item storage with d
func (d *Document) Clone() *Document {
	c := *d
	c.Items = make([]Item, len(d.Items))
	copy(c.Items, d.Items)
	c.Settings.Extra = maps.Clone(d.Settings.Extra)
	return &c
}

// Find returns the index of the item with the given id, or -1
func (d *Document) Find(id string) int {
	for i, it := range d.Items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// Stats counts completed and pending items
func (d *Document) Stats() (done, pending int) {
	for _, it := range d.Items {
		if it.Completed {
			done++
		} else {
			pending++
		}
	}
	return
}
