package encounter

import (
	"time"

	"github.com/google/uuid"

	"encounter-assistant/internal/records"
)

// Status of the recording lifecycle. Stopping never resets what was
// accumulated while listening.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusListening Status = "listening"
)

type Symptom struct {
	Name     string `json:"name"`
	Detected bool   `json:"detected"`
}

// Vitals carry unit-suffixed strings. An empty field is absent.
type Vitals struct {
	Temperature   string `json:"temperature,omitempty"`
	BloodPressure string `json:"bloodPressure,omitempty"`
	Pulse         string `json:"pulse,omitempty"`
}

// Extraction is one symptom/vitals candidate set inferred from a transcript.
type Extraction struct {
	Symptoms []string `json:"symptoms"`
	Vitals   Vitals   `json:"vitals"`
}

// Diagnosis is carried through persistence untouched; nothing in this
// service produces one.
type Diagnosis struct {
	Name         string   `json:"name"`
	Confidence   float64  `json:"confidence"`
	Findings     []string `json:"findings"`
	Differential []string `json:"differential"`
	Plan         []string `json:"plan"`
	Severity     string   `json:"severity"`
}

// SessionState is the persisted aggregate consumed by downstream screens.
type SessionState struct {
	Diagnoses      []Diagnosis             `json:"diagnoses"`
	Symptoms       []string                `json:"symptoms"`
	Vitals         Vitals                  `json:"vitals"`
	LabResults     []records.LabResult     `json:"labResults,omitempty"`
	LabTestDate    string                  `json:"labTestDate,omitempty"`
	MedicalHistory *records.MedicalHistory `json:"medicalHistory,omitempty"`
	Timestamp      string                  `json:"timestamp,omitempty"`
	RawText        string                  `json:"rawDiagnosisText,omitempty"`
}

// WriteUp is the free-text artifact stored next to the session state.
type WriteUp struct {
	Content     string `json:"content"`
	CreatedAt   string `json:"createdAt"`
	DiagnosisID string `json:"diagnosisId,omitempty"`
}

// Encounter is the live view of one session.
type Encounter struct {
	ID         uuid.UUID              `json:"id"`
	PatientID  string                 `json:"patientId"`
	Status     Status                 `json:"status"`
	Transcript []string               `json:"transcript"`
	Snapshot   Snapshot               `json:"snapshot"`
	Labs       records.LabPanel       `json:"labs"`
	Abnormal   []records.LabResult    `json:"abnormalLabs"`
	History    records.MedicalHistory `json:"medicalHistory"`
	Diagnoses  []Diagnosis            `json:"diagnoses"`
	RawText    string                 `json:"rawDiagnosisText,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
	UpdatedAt  time.Time              `json:"updatedAt"`
}

// State assembles the persisted form of the encounter.
func (e *Encounter) State() SessionState {
	history := e.History
	return SessionState{
		Diagnoses:      append([]Diagnosis{}, e.Diagnoses...),
		Symptoms:       e.Snapshot.DetectedNames(),
		Vitals:         e.Snapshot.Vitals,
		LabResults:     append([]records.LabResult{}, e.Labs.Results...),
		LabTestDate:    e.Labs.TestDate,
		MedicalHistory: &history,
		RawText:        e.RawText,
	}
}

func (e *Encounter) clone() *Encounter {
	c := *e
	c.Transcript = append([]string{}, e.Transcript...)
	c.Snapshot.Symptoms = append([]Symptom{}, e.Snapshot.Symptoms...)
	c.Labs.Results = append([]records.LabResult{}, e.Labs.Results...)
	c.Abnormal = append([]records.LabResult{}, e.Abnormal...)
	c.Diagnoses = append([]Diagnosis{}, e.Diagnoses...)
	return &c
}
