package kv

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckQuota(t *testing.T) {
	assert.NoError(t, CheckQuota("k", 100, 0))
	assert.NoError(t, CheckQuota("k", 100, 100))

	err := CheckQuota("k", 101, 100)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	var qe *QuotaError
	assert.True(t, errors.As(err, &qe))
	assert.Equal(t, int64(101), qe.Need)
	assert.Equal(t, int64(100), qe.Limit)
}

func TestQuotaErrorWrapped(t *testing.T) {
	err := fmt.Errorf("save: %w", &QuotaError{Key: "k"})
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.NotErrorIs(t, err, ErrNotFound)
}
