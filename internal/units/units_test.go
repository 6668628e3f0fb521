package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"sqm":           "m2",
		" Square Meter": "m2",
		"M3":            "m3",
		"cu.m":          "m3",
		"Nos.":          "nr",
		"each":          "nr",
		"sqft":          "ft2",
		"Tonnes":        "t",
		"lm":            "m",
		"L.S.":          "sum",
		"bag":           "bag",
		"":              "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "input %q", in)
	}
}

func TestCompatibleAndFactor(t *testing.T) {
	assert.True(t, Compatible("sqft", "sqm"))
	f, ok := ConversionFactor("sqft", "sqm")
	require.True(t, ok)
	assert.InDelta(t, 0.0929, f, 0.0001)

	back, ok := ConversionFactor("sqm", "sqft")
	require.True(t, ok)
	assert.InDelta(t, 10.7639, back, 0.001)

	assert.False(t, Compatible("m2", "m3"))
	_, ok = ConversionFactor("m2", "m3")
	assert.False(t, ok)

	f, ok = ConversionFactor("t", "kg")
	require.True(t, ok)
	assert.InDelta(t, 1000, f, 1e-9)
}

func TestUnknownUnitsNeverPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.False(t, Compatible("bag", "m2"))
		_, ok := ConversionFactor("bag", "m2")
		assert.False(t, ok)
		_, ok = ConversionFactor("", "")
		assert.False(t, ok)
	})
	assert.True(t, Compatible("bag", "BAG"))
	f, ok := ConversionFactor("bag", "Bag")
	assert.True(t, ok)
	assert.Equal(t, 1.0, f)
	assert.Equal(t, Group(""), GroupOf("bag"))
}

func TestExtractFromText(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"Excavation in soil per m3", "m3"},
		{"Plastering to walls 12mm thick (sqm)", "m2"},
		{"Supply steel reinforcement in tonnes", "t"},
		{"Skirting 100mm high, linear metre", "m"},
		{"Provide door closer - 4 nos", "nr"},
		{"Ironmongery 12nr", "nr"},
		{"Door closer each", "nr"},
		{"Site clearance 2 ha", "ha"},
		{"Skirting 120 rm", "m"},
		{"Preliminaries 1 LS", "sum"},
		{"Preliminaries, lump sum", "sum"},
	}
	for _, tc := range cases {
		got, ok := ExtractFromText(tc.text)
		require.True(t, ok, tc.text)
		assert.Equal(t, tc.want, got, tc.text)
	}
	for _, text := range []string{
		"General cleaning",
		"Excavation in soil, no dewatering required",
		"Ha-ha retaining wall in brickwork",
		"RM contractor attendance, ls to be agreed",
		"Ea drainage channel as detailed",
	} {
		_, ok := ExtractFromText(text)
		assert.False(t, ok, text)
	}
	assert.Equal(t, "m2", Resolve("sqm", "per m3"))
	assert.Equal(t, "m3", Resolve("", "per m3"))
}
