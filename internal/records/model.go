package records

// LabResult is one analyte from a patient's lab panel. Flag is "High", "Low"
// or empty for a normal value.
type LabResult struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Unit  string `json:"unit"`
	Flag  string `json:"flag,omitempty"`
}

type Condition struct {
	Condition string `json:"condition"`
	Date      string `json:"date"`
}

type Medication struct {
	Name   string `json:"name"`
	Dosage string `json:"dosage"`
}

type Surgery struct {
	Surgery string `json:"surgery"`
	Date    string `json:"date"`
}

type Allergy struct {
	Allergen string `json:"allergen"`
	Reaction string `json:"reaction"`
}

type Immunization struct {
	Immunization string `json:"immunization"`
	Date         string `json:"date"`
}

// MedicalHistory is the decoded form of one medical-history row.
type MedicalHistory struct {
	ActiveConditions  []Condition    `json:"activeConditions"`
	CurrentMedication []Medication   `json:"currentMedication"`
	PastSurgeries     []Surgery      `json:"pastSurgeries"`
	Allergies         []Allergy      `json:"allergies"`
	Immunizations     []Immunization `json:"immunizations"`
	SocialHistory     string         `json:"socialHistory"`
	FamilyHistory     string         `json:"familyHistory"`
}

// EmptyHistory returns a history with every list present but empty.
func EmptyHistory() MedicalHistory {
	return MedicalHistory{
		ActiveConditions:  []Condition{},
		CurrentMedication: []Medication{},
		PastSurgeries:     []Surgery{},
		Allergies:         []Allergy{},
		Immunizations:     []Immunization{},
	}
}

// LabPanel is the normalized lab row of one patient.
type LabPanel struct {
	Results  []LabResult `json:"results"`
	TestDate string      `json:"testDate,omitempty"`
}

// PatientRecord bundles everything the record sources know about a patient.
type PatientRecord struct {
	PatientID string         `json:"patientId"`
	Found     bool           `json:"found"`
	Labs      LabPanel       `json:"labs"`
	Abnormal  []LabResult    `json:"abnormal"`
	History   MedicalHistory `json:"medicalHistory"`
}

// EmptyPatient is the record of a patient absent from every source.
func EmptyPatient(id string) PatientRecord {
	return PatientRecord{
		PatientID: id,
		Labs:      LabPanel{Results: []LabResult{}},
		Abnormal:  []LabResult{},
		History:   EmptyHistory(),
	}
}
