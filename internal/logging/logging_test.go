package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewLevels(t *testing.T) {
	var buf bytes.Buffer

	assert.Equal(t, zerolog.DebugLevel, New("debug", &buf).GetLevel())
	assert.Equal(t, zerolog.ErrorLevel, New(" ERROR ", &buf).GetLevel())
	assert.Equal(t, zerolog.WarnLevel, New("", &buf).GetLevel())
	assert.Equal(t, zerolog.WarnLevel, New("chatty", &buf).GetLevel())
}

func TestNewWrites(t *testing.T) {
	var buf bytes.Buffer
	log := New("info", &buf)

	log.Info().Str("key", "listkeep_data").Msg("saved")
	log.Debug().Msg("hidden")

	assert.Contains(t, buf.String(), "saved")
	assert.Contains(t, buf.String(), "listkeep_data")
	assert.NotContains(t, buf.String(), "hidden")
}
