package records

import "strings"

// Medical-history column names.
const (
	ColActiveConditions  = "Active Conditions"
	ColCurrentMedication = "Current Medication"
	ColPastSurgeries     = "Past Surgeries"
	ColSurgeryDates      = "Surgery Dates"
	ColAllergies         = "Allergies"
	ColAllergyReactions  = "Allergy Reactions"
	ColImmunizations     = "Immunizations"
	ColImmunizationDates = "Immunization Dates"
	ColSocialHistory     = "Social History"
	ColFamilyHistory     = "Family History"
)

// listGrammar describes how one encoded list field is delimited. The outer
// and tuple brackets are stripped at most once each; quote characters are
// removed everywhere.
type listGrammar struct {
	open, close           string
	quotes                string
	sep                   string
	tupleOpen, tupleClose string
	tupleSep              string
}

var (
	// "[(Flu, 2021-01-01), (Asthma, 2019-05-10)]"
	tupleList = listGrammar{
		open: "[", close: "]",
		quotes:    `"'`,
		sep:       "), (",
		tupleOpen: "(", tupleClose: ")",
		tupleSep: ", ",
	}
	// "['Appendectomy', 'Tonsillectomy']"
	flatList = listGrammar{
		open: "[", close: "]",
		quotes: `"'`,
		sep:    ", ",
	}
)

// elements splits raw into list elements. An empty or blank field yields nil.
func (g listGrammar) elements(raw string) []string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, g.open)
	s = strings.TrimSuffix(s, g.close)
	if g.quotes != "" {
		s = strings.Map(func(r rune) rune {
			if strings.ContainsRune(g.quotes, r) {
				return -1
			}
			return r
		}, s)
	}
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, g.sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if g.tupleSep == "" {
			p = strings.TrimSpace(p)
		}
		out = append(out, p)
	}
	return out
}

// pairs decodes a tuple list into two-part entries. A tuple without a
// separator keeps its text in the first part and an empty second part.
func (g listGrammar) pairs(raw string) [][2]string {
	elems := g.elements(raw)
	out := make([][2]string, 0, len(elems))
	for _, e := range elems {
		e = strings.TrimPrefix(strings.TrimLeft(e, " "), g.tupleOpen)
		e = strings.TrimSuffix(strings.TrimRight(e, " "), g.tupleClose)
		parts := strings.SplitN(e, g.tupleSep, 2)
		var p [2]string
		p[0] = strings.TrimSpace(parts[0])
		if len(parts) == 2 {
			p[1] = strings.TrimSpace(parts[1])
		}
		out = append(out, p)
	}
	return out
}

// zip pairs primary[i] with sibling[i]; a short sibling pads with "".
func zip[T any](primary, sibling []string, build func(a, b string) T) []T {
	out := make([]T, 0, len(primary))
	for i, a := range primary {
		b := ""
		if i < len(sibling) {
			b = sibling[i]
		}
		out = append(out, build(a, b))
	}
	return out
}

// DecodeHistory turns one raw medical-history row into typed entity lists.
// It never fails: malformed input degrades to best-effort strings.
func DecodeHistory(fields map[string]string) MedicalHistory {
	h := EmptyHistory()

	for _, p := range tupleList.pairs(fields[ColActiveConditions]) {
		h.ActiveConditions = append(h.ActiveConditions, Condition{Condition: p[0], Date: p[1]})
	}
	for _, p := range tupleList.pairs(fields[ColCurrentMedication]) {
		h.CurrentMedication = append(h.CurrentMedication, Medication{Name: p[0], Dosage: p[1]})
	}

	h.PastSurgeries = zip(
		flatList.elements(fields[ColPastSurgeries]),
		flatList.elements(fields[ColSurgeryDates]),
		func(a, b string) Surgery { return Surgery{Surgery: a, Date: b} },
	)
	h.Allergies = zip(
		flatList.elements(fields[ColAllergies]),
		flatList.elements(fields[ColAllergyReactions]),
		func(a, b string) Allergy { return Allergy{Allergen: a, Reaction: b} },
	)
	h.Immunizations = zip(
		flatList.elements(fields[ColImmunizations]),
		flatList.elements(fields[ColImmunizationDates]),
		func(a, b string) Immunization { return Immunization{Immunization: a, Date: b} },
	)

	h.SocialHistory = strings.TrimSpace(fields[ColSocialHistory])
	h.FamilyHistory = strings.TrimSpace(fields[ColFamilyHistory])
	return h
}
