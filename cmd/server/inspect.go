package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"encounter-assistant/internal/config"
	"encounter-assistant/internal/records"
)

func inspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the lab panel and medical history of a patient",
		RunE: func(cmd *cobra.Command, args []string) error {
			patient, _ := cmd.Flags().GetString("patient")
			dir, _ := cmd.Flags().GetString("dir")
			list, _ := cmd.Flags().GetBool("list")

			if dir == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				dir = cfg.RecordsDir
				if patient == "" {
					patient = cfg.DefaultPatientID
				}
			}

			src, err := records.LoadDir(dir, records.DefaultUnits)
			if err != nil {
				return err
			}
			if list {
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(src.PatientIDs(), "\n"))
				return nil
			}
			writePatient(cmd.OutOrStdout(), src.Patient(patient))
			return nil
		},
	}
	cmd.Flags().String("patient", "", "Patient ID to inspect (defaults to DEFAULT_PATIENT_ID)")
	cmd.Flags().String("dir", "", "Directory holding the record CSV files (defaults to RECORDS_DIR)")
	cmd.Flags().Bool("list", false, "List known patient IDs")
	return cmd
}

func writePatient(w io.Writer, rec records.PatientRecord) {
	if !rec.Found {
		fmt.Fprintf(w, "Patient %s not found in record sources.\n", rec.PatientID)
		return
	}

	fmt.Fprintf(w, "Patient %s", rec.PatientID)
	if rec.Labs.TestDate != "" {
		fmt.Fprintf(w, " (labs from %s)", rec.Labs.TestDate)
	}
	fmt.Fprintln(w)

	labs := make([][]string, 0, len(rec.Labs.Results))
	for _, r := range rec.Labs.Results {
		labs = append(labs, []string{r.Name, r.Value, r.Unit, r.Flag})
	}
	fmt.Fprintln(w, renderTable([]string{"Test", "Value", "Unit", "Flag"}, labs,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft}))

	h := rec.History
	var rows [][]string
	for _, c := range h.ActiveConditions {
		rows = append(rows, []string{"Condition", c.Condition, c.Date})
	}
	for _, m := range h.CurrentMedication {
		rows = append(rows, []string{"Medication", m.Name, m.Dosage})
	}
	for _, s := range h.PastSurgeries {
		rows = append(rows, []string{"Surgery", s.Surgery, s.Date})
	}
	for _, a := range h.Allergies {
		rows = append(rows, []string{"Allergy", a.Allergen, a.Reaction})
	}
	for _, i := range h.Immunizations {
		rows = append(rows, []string{"Immunization", i.Immunization, i.Date})
	}
	if h.SocialHistory != "" {
		rows = append(rows, []string{"Social", h.SocialHistory, ""})
	}
	if h.FamilyHistory != "" {
		rows = append(rows, []string{"Family", h.FamilyHistory, ""})
	}
	if len(rows) > 0 {
		fmt.Fprintln(w, renderTable([]string{"Section", "Entry", "Detail"}, rows, nil))
	}
}
