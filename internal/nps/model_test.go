package nps

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseScore(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"Mala", 1},
		{"fue mala la atención", 1},
		{"REGULAR", 3},
		{"Excelente", 5},
		{"excelente!! gracias", 5},
		{"muy buena", 0},
		{"gracias", 0},
		{"", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseScore(tt.text), "text %q", tt.text)
	}
}
