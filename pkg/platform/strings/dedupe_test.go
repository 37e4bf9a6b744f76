package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil stays nil", input: nil, expected: nil},
		{name: "empty stays empty", input: []string{}, expected: []string{}},
		{name: "first occurrence wins", input: []string{"py-101", "math", "py-101"}, expected: []string{"py-101", "math"}},
		{name: "whitespace trimmed before comparing", input: []string{" math", "math "}, expected: []string{"math"}},
		{name: "blanks dropped", input: []string{"", "  ", "art"}, expected: []string{"art"}},
		{name: "case is significant", input: []string{"Math", "math"}, expected: []string{"Math", "math"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil", input: nil, expected: nil},
		{name: "single value", input: []string{"math"}, expected: []string{"math"}},
		{name: "comma separated", input: []string{"math, art"}, expected: []string{"math", "art"}},
		{name: "repeated and combined", input: []string{"math,art", "art", " py "}, expected: []string{"math", "art", "py"}},
		{name: "only separators", input: []string{",, ,"}, expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitList(tt.input))
		})
	}
}
