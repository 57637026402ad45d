package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLabs(t *testing.T) {
	row := Row{
		{Name: "Patient ID", Value: "P1000"},
		{Name: "ALT", Value: " 88 "},
		{Name: "ALT Flag", Value: " high "},
		{Name: "AST", Value: "30"},
		{Name: "Ferritin", Value: "12"},
		{Name: "Ferritin Flag", Value: "L"},
		{Name: "Test Date", Value: "2024-02-11"},
	}

	panel := NormalizeLabs(row, DefaultUnits)

	assert.Equal(t, "2024-02-11", panel.TestDate)
	require.Len(t, panel.Results, 3)
	assert.Equal(t, LabResult{Name: "ALT", Value: "88", Unit: "U/L", Flag: "High"}, panel.Results[0])
	assert.Equal(t, LabResult{Name: "AST", Value: "30", Unit: "U/L", Flag: ""}, panel.Results[1])
	// Not in the unit table: still reported.
	assert.Equal(t, LabResult{Name: "Ferritin", Value: "12", Unit: "", Flag: "Low"}, panel.Results[2])
}

func TestNormalizeLabs_NoAnalytes(t *testing.T) {
	panel := NormalizeLabs(Row{{Name: "Patient ID", Value: "P1"}}, nil)

	assert.NotNil(t, panel.Results)
	assert.Empty(t, panel.Results)
	assert.Empty(t, panel.TestDate)
}

func TestNormalizeFlag(t *testing.T) {
	cases := map[string]string{
		"High":     "High",
		" high ":   "High",
		"H":        "High",
		"LOW":      "Low",
		"l":        "Low",
		"":         "",
		"  ":       "",
		"Critical": "",
		"Normal":   "",
		"N":        "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeFlag(in), "input %q", in)
	}
}

func TestNormalizeLabs_UnknownFlagIsCleared(t *testing.T) {
	row := Row{
		{Name: "ALT", Value: "30"},
		{Name: "ALT Flag", Value: "Normal"},
		{Name: "AST", Value: "200"},
		{Name: "AST Flag", Value: "Critical"},
	}

	panel := NormalizeLabs(row, DefaultUnits)

	require.Len(t, panel.Results, 2)
	for _, r := range panel.Results {
		assert.Empty(t, r.Flag, r.Name)
	}
	assert.Empty(t, Abnormal(panel.Results))
}

func TestAbnormal_DoesNotMutateInput(t *testing.T) {
	results := []LabResult{
		{Name: "ALT", Value: "88", Flag: "High"},
		{Name: "AST", Value: "30"},
		{Name: "Sodium", Value: "128", Flag: " low"},
	}
	before := append([]LabResult(nil), results...)

	abnormal := Abnormal(results)

	assert.Equal(t, before, results)
	require.Len(t, abnormal, 2)
	assert.Equal(t, "ALT", abnormal[0].Name)
	assert.Equal(t, "Sodium", abnormal[1].Name)
}
