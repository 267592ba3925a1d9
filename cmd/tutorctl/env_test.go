package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTeacherID(t *testing.T) {
	id, err := parseTeacherID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "0", "-3", "abc"} {
		_, err := parseTeacherID(bad)
		assert.Error(t, err, bad)
	}
}
