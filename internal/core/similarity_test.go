package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 1.0},
		{"", "abc", 0.0},
		{"abc", "xyz", 0.0},
		{"abcd", "bcde", 0.75},
		{"tide", "diet", 0.25},
		{"strep throat", "strep throat", 1.0},
		{"strep", "strep throat", 10.0 / 17.0},
		{"bronchitis", "bronchiolitis", 20.0 / 23.0},
		{"pneumonia", "pnuemonia", 16.0 / 18.0},
		{"méningite", "meningite", 16.0 / 18.0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"|"+tt.b, func(t *testing.T) {
			assert.InDelta(t, tt.want, Ratio(tt.a, tt.b), 1e-9)
		})
	}
}

func TestRatio_PopularRunesIgnoredInLongInput(t *testing.T) {
	a := strings.Repeat("a", 10) + "b"
	b := "b" + strings.Repeat("a", 300)

	assert.InDelta(t, 2.0/312.0, Ratio(a, b), 1e-9)
}

func TestRatio_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"acute appendicitis", "appendicitis"},
		{"type 2 diabetes", "diabetes mellitus type 2"},
	}
	for _, p := range pairs {
		assert.InDelta(t, Ratio(p[0], p[1]), Ratio(p[1], p[0]), 1e-9)
	}
}
