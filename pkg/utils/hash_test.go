package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashStringIsStable(t *testing.T) {
	first := HashString("is executive order 14067 still in effect?")
	second := HashString("is executive order 14067 still in effect?")

	assert.Equal(t, first, second)
	assert.Len(t, first, 32)
	assert.NotEqual(t, first, HashString("different query"))
}

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Is EO 14067   Still In Effect?  ", "is eo 14067 still in effect?"},
		{"UPPER\tCASE\nQUERY", "upper case query"},
		{"", ""},
		{"   \t  ", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeQuery(tt.in))
	}
}
