package records

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const labsCSV = `Patient ID,Hemoglobin,Hemoglobin Flag,ALT,ALT Flag,AST,Test Date
P1000,11.2,Low,88, high ,30,2024-02-11
P1001,14.0,,25,,22,2024-03-01
`

const historyCSV = `Patient ID,Active Conditions,Current Medication,Past Surgeries,Surgery Dates,Allergies,Allergy Reactions,Immunizations,Immunization Dates,Social History,Family History
P1000,"[(Hepatitis C, 2018-03-02), (Hypertension, 2016-01-10)]","[(Lisinopril, 10 mg daily)]",['Appendectomy'],['2005-06-01'],"['Penicillin', 'Sulfa']",['Rash'],['Influenza'],['2023-10-01'],Former smoker,Father with cirrhosis
`

func newTestSource(t *testing.T) *Source {
	t.Helper()
	s, err := NewSource(strings.NewReader(labsCSV), strings.NewReader(historyCSV), nil)
	require.NoError(t, err)
	return s
}

func TestSource_Patient(t *testing.T) {
	s := newTestSource(t)

	rec := s.Patient("P1000")

	require.True(t, rec.Found)
	assert.Equal(t, "2024-02-11", rec.Labs.TestDate)
	require.Len(t, rec.Labs.Results, 3)
	assert.Equal(t, "g/dL", rec.Labs.Results[0].Unit)
	assert.Equal(t, "High", rec.Labs.Results[1].Flag)
	assert.Len(t, rec.Abnormal, 2)

	assert.Equal(t, []Condition{
		{Condition: "Hepatitis C", Date: "2018-03-02"},
		{Condition: "Hypertension", Date: "2016-01-10"},
	}, rec.History.ActiveConditions)
	assert.Equal(t, []Allergy{
		{Allergen: "Penicillin", Reaction: "Rash"},
		{Allergen: "Sulfa", Reaction: ""},
	}, rec.History.Allergies)
	assert.Equal(t, "Father with cirrhosis", rec.History.FamilyHistory)
}

func TestSource_PatientOnlyInOneTable(t *testing.T) {
	s := newTestSource(t)

	rec := s.Patient("P1001")

	assert.True(t, rec.Found)
	assert.Len(t, rec.Labs.Results, 3)
	assert.Empty(t, rec.Abnormal)
	assert.Empty(t, rec.History.ActiveConditions)
}

func TestSource_UnknownPatientResetsToEmpty(t *testing.T) {
	s := newTestSource(t)

	rec := s.Patient("P9999")

	assert.False(t, rec.Found)
	assert.NotNil(t, rec.Labs.Results)
	assert.Empty(t, rec.Labs.Results)
	assert.Empty(t, rec.Labs.TestDate)
	assert.Equal(t, EmptyHistory(), rec.History)
}

func TestSource_ExactMatchOnly(t *testing.T) {
	s := newTestSource(t)

	assert.False(t, s.Patient("p1000").Found)
	assert.False(t, s.Patient(" P1000").Found)
}

func TestSource_PatientIDs(t *testing.T) {
	assert.Equal(t, []string{"P1000", "P1001"}, newTestSource(t).PatientIDs())
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, LabResultsFile), []byte(labsCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, MedicalHistoryFile), []byte(historyCSV), 0o644))

	s, err := LoadDir(dir, DefaultUnits)
	require.NoError(t, err)
	assert.True(t, s.Patient("P1000").Found)
}

func TestLoadDir_MissingFile(t *testing.T) {
	_, err := LoadDir(t.TempDir(), nil)
	assert.Error(t, err)
}

func TestNewSource_EmptyTables(t *testing.T) {
	s, err := NewSource(strings.NewReader(""), nil, nil)
	require.NoError(t, err)
	assert.False(t, s.Patient("P1000").Found)
}
