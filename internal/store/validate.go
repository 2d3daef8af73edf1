package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/pbaille/listkeep/internal/domain"
	"github.com/pbaille/listkeep/internal/input"
)

// rawDocument is the stored shape before validation. Fields are kept raw so
// that one bad field or item does not discard the rest.
type rawDocument struct {
	Version     json.RawMessage `json:"version"`
	Items       json.RawMessage `json:"items"`
	LastUpdated json.RawMessage `json:"lastUpdated"`
	Settings    json.RawMessage `json:"settings"`
}

// decodeDocument parses b and merges it over a default document. It fails
// when b is not a JSON object or has no items array.
func (s *Store) decodeDocument(b []byte) (*domain.Document, error) {
	var raw rawDocument
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	if !isJSONKind(raw.Items, '[') {
		return nil, fmt.Errorf("items is not a list")
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw.Items, &items); err != nil {
		return nil, fmt.Errorf("items: %w", err)
	}

	return s.mergeDocument(domain.NewDocument(s.now()), &raw, items), nil
}

// mergeDocument lays the fields present in raw over def. Fields added to
// the document later keep their defaults when older data lacks them.
func (s *Store) mergeDocument(def *domain.Document, raw *rawDocument, items []json.RawMessage) *domain.Document {
	var version string
	if json.Unmarshal(raw.Version, &version) == nil && version != "" {
		def.Version = version
	}

	if t, ok := parseTime(raw.LastUpdated); ok {
		def.LastUpdated = t
	}

	if isJSONKind(raw.Settings, '{') {
		settings := def.Settings
		if json.Unmarshal(raw.Settings, &settings) == nil {
			def.Settings = settings
		}
	}

	seen := make(map[string]bool, len(items))
	def.Items = make([]domain.Item, 0, len(items))
	for i, r := range items {
		it, ok := s.validateItem(r, func() string { return repairID(r, i, 0) })
		if !ok {
			continue
		}
		for n := 1; seen[it.ID]; n++ {
			it.ID = repairID(r, i, n)
		}
		seen[it.ID] = true
		def.Items = append(def.Items, it)
	}
	return def
}

// ValidateItem rebuilds an item from untrusted JSON. Anything that is not
// an object, or whose text is empty after sanitizing, is rejected. Missing
// ids and timestamps are filled in and completed is coerced to a bool.
func (s *Store) ValidateItem(raw json.RawMessage) (domain.Item, bool) {
	return s.validateItem(raw, nil)
}

// validateItem is ValidateItem with a fallback for a missing id. A nil
// fallback leaves it to NormalizeItem.
func (s *Store) validateItem(raw json.RawMessage, fallbackID func() string) (domain.Item, bool) {
	var fields map[string]json.RawMessage
	if !isJSONKind(raw, '{') || json.Unmarshal(raw, &fields) != nil {
		return domain.Item{}, false
	}

	var it domain.Item
	it.ID = idFrom(fields["id"])
	if it.ID == "" && fallbackID != nil {
		it.ID = fallbackID()
	}

	var text string
	if json.Unmarshal(fields["text"], &text) == nil {
		it.Text = text
	}

	it.Completed = truthy(fields["completed"])

	if t, ok := parseTime(fields["createdAt"]); ok {
		it.CreatedAt = t
	}

	return s.NormalizeItem(it)
}

// NormalizeItem sanitizes the text of it and fills a missing id or
// creation time. It reports false when the text ends up empty.
func (s *Store) NormalizeItem(it domain.Item) (domain.Item, bool) {
	it.Text = input.SanitizeItem(it.Text)
	if it.Text == "" {
		return domain.Item{}, false
	}
	if it.ID == "" {
		it.ID = s.newID()
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = s.now()
	}
	return it, true
}

// repairNamespace scopes the ids derived by repairID
var repairNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/pbaille/listkeep/items"))

// repairID derives the id given to the item at index i of a stored list
// when its own id is missing or taken. The same stored bytes always yield
// the same id, so ids stay usable across loads until the list is saved.
func repairID(raw json.RawMessage, i, attempt int) string {
	name := make([]byte, 0, len(raw)+16)
	name = strconv.AppendInt(name, int64(i), 10)
	name = append(name, '#')
	name = strconv.AppendInt(name, int64(attempt), 10)
	name = append(name, '#')
	name = append(name, raw...)
	return uuid.NewSHA1(repairNamespace, name).String()
}

func idFrom(raw json.RawMessage) string {
	var id string
	if json.Unmarshal(raw, &id) == nil {
		return id
	}
	// numeric ids from older exports
	var n json.Number
	if isJSONKind(raw, '0') && json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

// truthy converts a JSON value to a bool the way a loosely typed client
// would: false, null, 0 and "" are false, everything else is true.
func truthy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	switch raw[0] {
	case 't':
		return true
	case 'f', 'n':
		return false
	case '"':
		var s string
		return json.Unmarshal(raw, &s) == nil && s != ""
	case '{', '[':
		return true
	default:
		f, err := strconv.ParseFloat(string(raw), 64)
		return err == nil && f != 0
	}
}

func parseTime(raw json.RawMessage) (time.Time, bool) {
	var s string
	if json.Unmarshal(raw, &s) != nil || s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// isJSONKind reports whether raw starts like the given kind of value: '{'
// object, '[' array, '0' number.
func isJSONKind(raw json.RawMessage, kind byte) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	if kind == '0' {
		return raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9')
	}
	return raw[0] == kind
}
