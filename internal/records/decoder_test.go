package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHistory_PairsConditionsByPosition(t *testing.T) {
	h := DecodeHistory(map[string]string{
		ColActiveConditions: "(Flu, 2021), (Asthma, )",
	})

	assert.Equal(t, []Condition{
		{Condition: "Flu", Date: "2021"},
		{Condition: "Asthma", Date: ""},
	}, h.ActiveConditions)
}

func TestDecodeHistory_BracketsAndQuotes(t *testing.T) {
	h := DecodeHistory(map[string]string{
		ColActiveConditions:  `[("Hepatitis C", "2018-03-02"), ('Type 2 Diabetes', '2015-07-19')]`,
		ColCurrentMedication: `[(Metformin, 500 mg twice daily), (Lisinopril, 10 mg, morning)]`,
	})

	assert.Equal(t, []Condition{
		{Condition: "Hepatitis C", Date: "2018-03-02"},
		{Condition: "Type 2 Diabetes", Date: "2015-07-19"},
	}, h.ActiveConditions)
	assert.Equal(t, []Medication{
		{Name: "Metformin", Dosage: "500 mg twice daily"},
		{Name: "Lisinopril", Dosage: "10 mg, morning"},
	}, h.CurrentMedication)
}

func TestDecodeHistory_FlatListsZipWithSiblings(t *testing.T) {
	h := DecodeHistory(map[string]string{
		ColPastSurgeries:     "['Appendectomy', 'Cholecystectomy']",
		ColSurgeryDates:      "['2010-04-01']",
		ColAllergies:         "[Penicillin, Peanuts]",
		ColAllergyReactions:  "[Rash, Anaphylaxis, Hives]",
		ColImmunizations:     "Influenza",
		ColImmunizationDates: "2023-10-01",
	})

	assert.Equal(t, []Surgery{
		{Surgery: "Appendectomy", Date: "2010-04-01"},
		{Surgery: "Cholecystectomy", Date: ""},
	}, h.PastSurgeries)
	assert.Equal(t, []Allergy{
		{Allergen: "Penicillin", Reaction: "Rash"},
		{Allergen: "Peanuts", Reaction: "Anaphylaxis"},
	}, h.Allergies)
	assert.Equal(t, []Immunization{{Immunization: "Influenza", Date: "2023-10-01"}}, h.Immunizations)
}

func TestDecodeHistory_MissingFieldsAreEmptyLists(t *testing.T) {
	h := DecodeHistory(map[string]string{
		ColCurrentMedication: "",
		ColAllergies:         "[]",
		ColSocialHistory:     "  Non-smoker ",
	})

	require.NotNil(t, h.ActiveConditions)
	assert.Empty(t, h.ActiveConditions)
	assert.Empty(t, h.CurrentMedication)
	assert.Empty(t, h.PastSurgeries)
	assert.Empty(t, h.Allergies)
	assert.Empty(t, h.Immunizations)
	assert.Equal(t, "Non-smoker", h.SocialHistory)
	assert.Equal(t, "", h.FamilyHistory)
}

func TestDecodeHistory_NeverPanics(t *testing.T) {
	inputs := []string{
		"malformed(((",
		")))",
		"[",
		"]",
		"), (",
		"(, )",
		`"'"'`,
		"((a, b), (c, d))",
		"[(x, y)), ((z, w)]",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			assert.NotPanics(t, func() {
				DecodeHistory(map[string]string{
					ColActiveConditions:  in,
					ColCurrentMedication: in,
					ColPastSurgeries:     in,
					ColSurgeryDates:      in,
					ColAllergies:         in,
					ColImmunizations:     in,
				})
			})
		})
	}
}

func TestDecodeHistory_MalformedDegradesToOneEntity(t *testing.T) {
	h := DecodeHistory(map[string]string{ColActiveConditions: "malformed((("})

	require.Len(t, h.ActiveConditions, 1)
	assert.Equal(t, "malformed(((", h.ActiveConditions[0].Condition)
	assert.Equal(t, "", h.ActiveConditions[0].Date)
}

func TestListGrammar_Elements(t *testing.T) {
	tests := []struct {
		name string
		g    listGrammar
		in   string
		want []string
	}{
		{"blank", flatList, "   ", nil},
		{"brackets only", flatList, "[]", nil},
		{"quotes only", flatList, `['']`, nil},
		{"single", flatList, "[Hives]", []string{"Hives"}},
		{"tuple split", tupleList, "[(a, 1), (b, 2)]", []string{"(a, 1", "b, 2)"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.g.elements(tt.in))
		})
	}
}
