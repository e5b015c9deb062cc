package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `[1, 2]`, StripCodeFence("```json\n[1, 2]\n```"))
	assert.Equal(t, `[1, 2]`, StripCodeFence("```\n[1, 2]\n```"))
	assert.Equal(t, `[1, 2]`, StripCodeFence("  [1, 2]  "))
	assert.Equal(t, `{"a": 1}`, StripCodeFence("```json\n{\"a\": 1}"))
}

func TestExtractJSONArray(t *testing.T) {
	var out []map[string]string

	err := ExtractJSONArray(`Here you go: [{"a": "1"}, {"a": "2"}] hope this helps`, &out)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "2", out[1]["a"])
}

func TestExtractJSONArrayFenced(t *testing.T) {
	var out []int
	err := ExtractJSONArray("```json\n[1, 2, 3]\n```", &out)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, out)
}

func TestExtractJSONArrayMalformed(t *testing.T) {
	var out []int

	err := ExtractJSONArray(`I could not produce the data you asked for.`, &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadUpstreamJSON))

	err = ExtractJSONArray(`[1, 2,`, &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadUpstreamJSON))
}

func TestExtractJSONObject(t *testing.T) {
	var out struct {
		FinalAccuracy float64 `json:"final_accuracy"`
	}

	err := ExtractJSONObject("```json\n{\"final_accuracy\": 87.5}\n```", &out)
	require.NoError(t, err)
	assert.Equal(t, 87.5, out.FinalAccuracy)

	err = ExtractJSONObject(`no object here`, &out)
	assert.True(t, errors.Is(err, ErrBadUpstreamJSON))
}
