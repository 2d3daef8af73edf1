package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsOverlayKeepsDefaults(t *testing.T) {
	s := DefaultSettings()
	require.NoError(t, json.Unmarshal([]byte(`{"theme": "dark"}`), &s))

	assert.Equal(t, Settings{Theme: "dark", Animations: true}, s)
}

func TestSettingsRoundTripUnknownKeys(t *testing.T) {
	in := `{"theme": "dark", "animations": false, "fontSize": 14, "tags": ["a"]}`

	var s Settings
	require.NoError(t, json.Unmarshal([]byte(in), &s))
	assert.Equal(t, "dark", s.Theme)
	assert.Len(t, s.Extra, 2)

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestSettingsRejectsWrongTypes(t *testing.T) {
	s := DefaultSettings()
	assert.Error(t, json.Unmarshal([]byte(`{"theme": 3}`), &s))
	assert.Error(t, json.Unmarshal([]byte(`[]`), &s))
}

func TestCloneCopiesSettingsExtra(t *testing.T) {
	d := NewDocument(time.Now())
	d.Settings.Extra = map[string]json.RawMessage{"fontSize": json.RawMessage(`14`)}
	d.Items = append(d.Items, Item{ID: "a", Text: "x"})

	c := d.Clone()
	c.Settings.Extra["fontSize"] = json.RawMessage(`20`)
	c.Items[0].Text = "y"

	assert.Equal(t, `14`, string(d.Settings.Extra["fontSize"]))
	assert.Equal(t, "x", d.Items[0].Text)
}

func TestStats(t *testing.T) {
	d := NewDocument(time.Now())
	d.Items = []Item{{ID: "a", Completed: true}, {ID: "b"}, {ID: "c"}}

	done, pending := d.Stats()
	assert.Equal(t, 1, done)
	assert.Equal(t, 2, pending)
	assert.Equal(t, 1, d.Find("b"))
	assert.Equal(t, -1, d.Find("z"))
}
