package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewBookmarkId(t *testing.T) {
	seen := map[string]bool{}
	for range 100 {
		id := string(NewBookmarkId())
		assert.Len(t, id, 8)
		assert.Equal(t, strings.ToLower(id), id)
		assert.False(t, seen[id], "ids must not repeat")
		seen[id] = true
	}
}
