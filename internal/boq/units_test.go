package boq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalUnit(t *testing.T) {
	assert.Equal(t, "m²", CanonicalUnit("sqm"))
	assert.Equal(t, "m²", CanonicalUnit("sq.m"))
	assert.Equal(t, "bag", CanonicalUnit("Bags"))
	assert.Equal(t, "pcs", CanonicalUnit("pieces"))
	assert.Equal(t, "m³", CanonicalUnit("cubic meters"))
	assert.Equal(t, "board ft", CanonicalUnit("board feet"))
	assert.Equal(t, "crate", CanonicalUnit("Crate"))
	assert.Equal(t, "m", CanonicalUnit("  Meters "))
}
