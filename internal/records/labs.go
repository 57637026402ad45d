package records

import "strings"

const (
	ColPatientID = "Patient ID"
	ColTestDate  = "Test Date"
	flagSuffix   = " Flag"
)

const (
	FlagHigh = "High"
	FlagLow  = "Low"
)

// DefaultUnits maps analyte names to their display units. Analytes missing
// from the table are still reported, with an empty unit.
var DefaultUnits = map[string]string{
	"Hemoglobin":       "g/dL",
	"Hematocrit":       "%",
	"WBC":              "10^3/uL",
	"RBC":              "10^6/uL",
	"Platelets":        "10^3/uL",
	"Glucose":          "mg/dL",
	"HbA1c":            "%",
	"Sodium":           "mmol/L",
	"Potassium":        "mmol/L",
	"Chloride":         "mmol/L",
	"Bicarbonate":      "mmol/L",
	"BUN":              "mg/dL",
	"Creatinine":       "mg/dL",
	"Calcium":          "mg/dL",
	"ALT":              "U/L",
	"AST":              "U/L",
	"ALP":              "U/L",
	"GGT":              "U/L",
	"Total Bilirubin":  "mg/dL",
	"Direct Bilirubin": "mg/dL",
	"Albumin":          "g/dL",
	"Total Protein":    "g/dL",
	"INR":              "",
	"AFP":              "ng/mL",
	"CRP":              "mg/L",
	"ESR":              "mm/hr",
	"TSH":              "mIU/L",
	"Cholesterol":      "mg/dL",
	"LDL":              "mg/dL",
	"HDL":              "mg/dL",
	"Triglycerides":    "mg/dL",
}

// Column is one named cell of a source row.
type Column struct {
	Name  string
	Value string
}

// Row is a source table row in its original column order.
type Row []Column

// Get returns the value of the named column.
func (r Row) Get(name string) (string, bool) {
	for _, c := range r {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// Map flattens the row. Later duplicates win.
func (r Row) Map() map[string]string {
	m := make(map[string]string, len(r))
	for _, c := range r {
		m[c.Name] = c.Value
	}
	return m
}

func isAnalyte(column string) bool {
	return column != ColPatientID && column != ColTestDate && !strings.HasSuffix(column, flagSuffix)
}

// NormalizeFlag maps the free-form flag column to "High", "Low" or "".
// Anything else, "Normal" included, counts as no flag.
func NormalizeFlag(flag string) string {
	switch strings.ToLower(strings.TrimSpace(flag)) {
	case "high", "h":
		return FlagHigh
	case "low", "l":
		return FlagLow
	}
	return ""
}

// NormalizeLabs converts a lab row into typed results in source column order.
func NormalizeLabs(row Row, units map[string]string) LabPanel {
	panel := LabPanel{Results: []LabResult{}}
	if d, ok := row.Get(ColTestDate); ok {
		panel.TestDate = strings.TrimSpace(d)
	}

	seen := make(map[string]bool, len(row))
	for _, c := range row {
		if !isAnalyte(c.Name) || seen[c.Name] {
			continue
		}
		seen[c.Name] = true

		flag, _ := row.Get(c.Name + flagSuffix)
		panel.Results = append(panel.Results, LabResult{
			Name:  c.Name,
			Value: strings.TrimSpace(c.Value),
			Unit:  strings.TrimSpace(units[c.Name]),
			Flag:  NormalizeFlag(flag),
		})
	}
	return panel
}

// IsAbnormal reports whether the result is flagged high or low.
func IsAbnormal(r LabResult) bool {
	return NormalizeFlag(r.Flag) != ""
}

// Abnormal returns the flagged subset of results as a new slice.
func Abnormal(results []LabResult) []LabResult {
	out := []LabResult{}
	for _, r := range results {
		if IsAbnormal(r) {
			out = append(out, r)
		}
	}
	return out
}
