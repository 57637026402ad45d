package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/signintech/gopdf"

	"encounter-assistant/internal/encounter"
	"encounter-assistant/internal/records"
)

// DejaVuSans covers the Latin-1 symbols used in vitals (°).
var DefaultFontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

var errNoFont = errors.New("no usable font")

type TelegramClient interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, fileData []byte, fileName string) error
}

type Service struct {
	tgClient     TelegramClient
	doctorChatID int64
	fontPaths    []string
	log          zerolog.Logger
}

// NewService builds the report service. A nil client or zero chat id turns
// delivery off; write-ups are still composed and stored.
func NewService(tg TelegramClient, doctorChatID int64, fontPaths []string, logger zerolog.Logger) *Service {
	if len(fontPaths) == 0 {
		fontPaths = DefaultFontPaths
	}
	return &Service{
		tgClient:     tg,
		doctorChatID: doctorChatID,
		fontPaths:    fontPaths,
		log:          logger,
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func labLine(r records.LabResult) string {
	line := fmt.Sprintf("%s: %s", r.Name, r.Value)
	if r.Unit != "" {
		line += " " + r.Unit
	}
	if r.Flag != "" {
		line += " (" + r.Flag + ")"
	}
	return line
}

// ComposeWriteUp renders the encounter as plain text. It only restates what
// was captured.
func (s *Service) ComposeWriteUp(e encounter.Encounter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Encounter summary\n")
	fmt.Fprintf(&b, "Patient: %s\n", orDash(e.PatientID))
	fmt.Fprintf(&b, "Encounter: %s\n", e.ID)
	fmt.Fprintf(&b, "Date: %s\n\n", e.UpdatedAt.UTC().Format("2006-01-02 15:04"))

	b.WriteString("Symptoms:\n")
	names := e.Snapshot.DetectedNames()
	if len(names) == 0 {
		b.WriteString("- none reported\n")
	}
	for _, n := range names {
		fmt.Fprintf(&b, "- %s\n", n)
	}

	b.WriteString("\nVitals:\n")
	fmt.Fprintf(&b, "- Temperature: %s\n", orDash(e.Snapshot.Vitals.Temperature))
	fmt.Fprintf(&b, "- Blood Pressure: %s\n", orDash(e.Snapshot.Vitals.BloodPressure))
	fmt.Fprintf(&b, "- Pulse: %s\n", orDash(e.Snapshot.Vitals.Pulse))

	if len(e.Labs.Results) > 0 {
		fmt.Fprintf(&b, "\nLab results (%s):\n", orDash(e.Labs.TestDate))
		// Abnormal first.
		for _, r := range records.Abnormal(e.Labs.Results) {
			fmt.Fprintf(&b, "- %s\n", labLine(r))
		}
		for _, r := range e.Labs.Results {
			if !records.IsAbnormal(r) {
				fmt.Fprintf(&b, "- %s\n", labLine(r))
			}
		}
	}

	h := e.History
	if len(h.ActiveConditions) > 0 {
		b.WriteString("\nActive conditions:\n")
		for _, c := range h.ActiveConditions {
			fmt.Fprintf(&b, "- %s (diagnosed %s)\n", c.Condition, orDash(c.Date))
		}
	}
	if len(h.CurrentMedication) > 0 {
		b.WriteString("\nCurrent medication:\n")
		for _, m := range h.CurrentMedication {
			fmt.Fprintf(&b, "- %s %s\n", m.Name, m.Dosage)
		}
	}
	if len(h.Allergies) > 0 {
		b.WriteString("\nAllergies:\n")
		for _, a := range h.Allergies {
			fmt.Fprintf(&b, "- %s: %s\n", a.Allergen, orDash(a.Reaction))
		}
	}

	if len(e.Transcript) > 0 {
		b.WriteString("\nTranscript:\n")
		b.WriteString(strings.Join(e.Transcript, " "))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderPDF lays the write-up out on A4 pages.
func (s *Service) RenderPDF(w encounter.WriteUp) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	var fontErr error
	fontLoaded := false
	for _, path := range s.fontPaths {
		if err := pdf.AddTTFFont("DejaVu", path); err == nil {
			fontLoaded = true
			break
		} else {
			fontErr = err
		}
	}
	if !fontLoaded {
		return nil, fmt.Errorf("%w: %v", errNoFont, fontErr)
	}

	if err := pdf.SetFont("DejaVu", "", 16); err != nil {
		return nil, err
	}
	pdf.SetXY(40, 40)
	pdf.Cell(nil, "Encounter write-up")
	pdf.Br(24)

	if err := pdf.SetFont("DejaVu", "", 10); err != nil {
		return nil, err
	}
	for _, para := range strings.Split(w.Content, "\n") {
		if para == "" {
			pdf.Br(8)
			continue
		}
		lines, err := pdf.SplitText(para, 515)
		if err != nil {
			lines = []string{para}
		}
		for _, l := range lines {
			if pdf.GetY() > 800 {
				pdf.AddPage()
				pdf.SetXY(40, 40)
			}
			pdf.SetX(40)
			pdf.Cell(nil, l)
			pdf.Br(13)
		}
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// SendDoctorReport delivers the write-up as a PDF, or as a plain message
// when no font is available.
func (s *Service) SendDoctorReport(ctx context.Context, e encounter.Encounter, w encounter.WriteUp) error {
	if s.tgClient == nil || s.doctorChatID == 0 {
		s.log.Debug().Str("encounter", e.ID.String()).Msg("report delivery disabled")
		return nil
	}

	data, err := s.RenderPDF(w)
	if errors.Is(err, errNoFont) {
		s.log.Warn().Err(err).Msg("sending write-up as text")
		return s.tgClient.SendMessage(ctx, s.doctorChatID, w.Content)
	}
	if err != nil {
		return err
	}

	fileName := fmt.Sprintf("writeup_%s_%s.pdf", e.ID, time.Now().UTC().Format("20060102T150405"))
	if err := s.tgClient.SendDocument(ctx, s.doctorChatID, data, fileName); err != nil {
		return fmt.Errorf("send report document: %w", err)
	}
	s.log.Info().Str("encounter", e.ID.String()).Msg("report sent")
	return nil
}
