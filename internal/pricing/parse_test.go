package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePrice(t *testing.T) {
	assert.Equal(t, 1250.0, ParsePrice("₱1,250"))
	assert.Equal(t, 1250.5, ParsePrice("PHP 1,250.50"))
	assert.Equal(t, 250.0, ParsePrice("250"))
	assert.Equal(t, 250.0, ParsePrice("  ₱ 250 per bag  "))
	assert.Equal(t, 0.0, ParsePrice("call for price"))
	assert.Equal(t, 0.0, ParsePrice(""))
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, Median(nil))
	assert.Equal(t, 5.0, Median([]float64{5}))
	assert.Equal(t, 20.0, Median([]float64{30, 10, 20}))
	assert.Equal(t, 15.0, Median([]float64{10, 20, 30, 5}))
}

func TestMedianDoesNotMutateInput(t *testing.T) {
	prices := []float64{30, 10, 20}
	Median(prices)
	assert.Equal(t, []float64{30, 10, 20}, prices)
}
