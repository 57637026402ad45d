package encounter

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Snapshot is the part of the session the reconciler owns.
type Snapshot struct {
	Symptoms []Symptom `json:"symptoms"`
	Vitals   Vitals    `json:"vitals"`
}

// NewSnapshot seeds a checklist of undetected symptoms.
func NewSnapshot(seed ...string) Snapshot {
	s := Snapshot{Symptoms: make([]Symptom, 0, len(seed))}
	seen := make(map[string]bool, len(seed))
	for _, name := range seed {
		k := symptomKey(name)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		s.Symptoms = append(s.Symptoms, Symptom{Name: strings.TrimSpace(name)})
	}
	return s
}

// DetectedNames lists detected symptoms in insertion order.
func (s Snapshot) DetectedNames() []string {
	out := []string{}
	for _, sym := range s.Symptoms {
		if sym.Detected {
			out = append(out, sym.Name)
		}
	}
	return out
}

// Prompt-template echoes from the extractor.
var placeholderSymptoms = map[string]bool{
	"symptom":      true,
	"symptom1":     true,
	"symptom2":     true,
	"symptom3":     true,
	"symptom_name": true,
	"none":         true,
	"n/a":          true,
	"unknown":      true,
	"...":          true,
}

var (
	temperaturePattern   = regexp.MustCompile(`^\d+(\.\d+)?°F$`)
	bloodPressurePattern = regexp.MustCompile(`^\d+/\d+\s*mmHg$`)
	pulsePattern         = regexp.MustCompile(`^\d+\s*bpm$`)
)

// Rejection records a candidate value the reconciler discarded.
type Rejection struct {
	Field  string `json:"field"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// symptomKey folds case after upper-casing, so the key of a name and of its
// initial-capital form are always equal ("ıtching" and "Itching" included).
func symptomKey(name string) string {
	return cases.Fold().String(strings.ToUpper(strings.TrimSpace(name)))
}

func initialCapital(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

// acceptSymptom reports why a candidate symptom is dropped, or "" to keep it.
func acceptSymptom(name string) string {
	k := symptomKey(name)
	switch {
	case k == "":
		return "empty"
	case placeholderSymptoms[k]:
		return "placeholder"
	case strings.ContainsAny(name, "{}"):
		return "template braces"
	}
	return ""
}

// Reconcile folds one extraction event into the snapshot. It is a pure
// function: the inputs are not modified and applying the same event twice
// gives the same result as applying it once.
func Reconcile(s Snapshot, ev Extraction) Snapshot {
	next, _ := ReconcileWithReport(s, ev)
	return next
}

// ReconcileWithReport is Reconcile plus the list of discarded candidates.
func ReconcileWithReport(s Snapshot, ev Extraction) (Snapshot, []Rejection) {
	var rejected []Rejection

	next := Snapshot{
		Symptoms: make([]Symptom, len(s.Symptoms), len(s.Symptoms)+len(ev.Symptoms)),
		Vitals:   s.Vitals,
	}
	copy(next.Symptoms, s.Symptoms)

	index := make(map[string]int, len(next.Symptoms))
	for i, sym := range next.Symptoms {
		index[symptomKey(sym.Name)] = i
	}

	for _, raw := range ev.Symptoms {
		if reason := acceptSymptom(raw); reason != "" {
			rejected = append(rejected, Rejection{Field: "symptom", Value: raw, Reason: reason})
			continue
		}
		k := symptomKey(raw)
		if i, ok := index[k]; ok {
			next.Symptoms[i].Detected = true
			continue
		}
		index[k] = len(next.Symptoms)
		next.Symptoms = append(next.Symptoms, Symptom{
			Name:     initialCapital(strings.TrimSpace(raw)),
			Detected: true,
		})
	}

	mergeVital := func(field, candidate string, pattern *regexp.Regexp, dst *string) {
		c := strings.TrimSpace(candidate)
		if c == "" {
			return
		}
		if !pattern.MatchString(c) {
			rejected = append(rejected, Rejection{Field: field, Value: candidate, Reason: "shape mismatch"})
			return
		}
		*dst = c
	}
	mergeVital("temperature", ev.Vitals.Temperature, temperaturePattern, &next.Vitals.Temperature)
	mergeVital("bloodPressure", ev.Vitals.BloodPressure, bloodPressurePattern, &next.Vitals.BloodPressure)
	mergeVital("pulse", ev.Vitals.Pulse, pulsePattern, &next.Vitals.Pulse)

	return next, rejected
}
