package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	LabResultsFile     = "lab_results.csv"
	MedicalHistoryFile = "medical_history.csv"
)

// Source holds the two patient tables indexed by patient identifier.
type Source struct {
	units   map[string]string
	labs    map[string]Row
	history map[string]Row
}

// LoadDir reads lab_results.csv and medical_history.csv from dir.
func LoadDir(dir string, units map[string]string) (*Source, error) {
	labs, err := os.Open(filepath.Join(dir, LabResultsFile))
	if err != nil {
		return nil, fmt.Errorf("open lab results: %w", err)
	}
	defer labs.Close()

	history, err := os.Open(filepath.Join(dir, MedicalHistoryFile))
	if err != nil {
		return nil, fmt.Errorf("open medical history: %w", err)
	}
	defer history.Close()

	return NewSource(labs, history, units)
}

// NewSource parses both tables. Either reader may be nil for an empty table.
func NewSource(labs, history io.Reader, units map[string]string) (*Source, error) {
	if units == nil {
		units = DefaultUnits
	}
	s := &Source{units: units}

	var err error
	if s.labs, err = readTable(labs); err != nil {
		return nil, fmt.Errorf("%s: %w", LabResultsFile, err)
	}
	if s.history, err = readTable(history); err != nil {
		return nil, fmt.Errorf("%s: %w", MedicalHistoryFile, err)
	}
	return s, nil
}

// readTable indexes rows by the Patient ID column. The first row for an id
// wins and blank lines are skipped.
func readTable(r io.Reader) (map[string]Row, error) {
	out := map[string]Row{}
	if r == nil {
		return out, nil
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		row := make(Row, 0, len(header))
		for i, name := range header {
			v := ""
			if i < len(rec) {
				v = rec[i]
			}
			row = append(row, Column{Name: name, Value: v})
		}
		id, _ := row.Get(ColPatientID)
		if id == "" {
			continue
		}
		if _, dup := out[id]; !dup {
			out[id] = row
		}
	}
	return out, nil
}

// Patient looks up id in both tables by exact match. An unknown id yields
// empty collections rather than an error.
func (s *Source) Patient(id string) PatientRecord {
	rec := EmptyPatient(id)
	if s == nil {
		return rec
	}
	if row, ok := s.labs[id]; ok {
		rec.Found = true
		rec.Labs = NormalizeLabs(row, s.units)
		rec.Abnormal = Abnormal(rec.Labs.Results)
	}
	if row, ok := s.history[id]; ok {
		rec.Found = true
		rec.History = DecodeHistory(row.Map())
	}
	return rec
}

// PatientIDs returns every id known to either table.
func (s *Source) PatientIDs() []string {
	seen := map[string]bool{}
	var ids []string
	for _, t := range []map[string]Row{s.labs, s.history} {
		for id := range t {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids
}
