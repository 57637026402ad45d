package encounter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"encounter-assistant/internal/platform/kv"
	"encounter-assistant/internal/records"
)

// Extractor calls the remote symptom/vitals inference service.
type Extractor interface {
	Extract(ctx context.Context, transcript string) (Extraction, error)
}

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioData []byte) (string, error)
}

// RecordSource looks up a patient's lab and medical-history rows.
type RecordSource interface {
	Patient(id string) records.PatientRecord
}

// ReportService composes and delivers the encounter write-up.
type ReportService interface {
	ComposeWriteUp(e Encounter) string
	SendDoctorReport(ctx context.Context, e Encounter, w WriteUp) error
}

type Service interface {
	Create(ctx context.Context, patientID string) (*Encounter, error)
	Get(ctx context.Context, id uuid.UUID) (*Encounter, error)
	Start(ctx context.Context, id uuid.UUID) (*Encounter, error)
	Stop(ctx context.Context, id uuid.UUID) (*Encounter, error)
	HandleFragment(ctx context.Context, id uuid.UUID, text string) (*Encounter, error)
	HandleAudio(ctx context.Context, id uuid.UUID, audioData []byte) (string, *Encounter, error)
	SelectPatient(ctx context.Context, id uuid.UUID, patientID string) (*Encounter, error)
	Reset(ctx context.Context, id uuid.UUID) (*Encounter, error)
	ResetDiagnosis(ctx context.Context, id uuid.UUID) (*Encounter, error)
	Finish(ctx context.Context, id uuid.UUID) (*WriteUp, error)
	State(ctx context.Context, id uuid.UUID) (*SessionState, error)
	WriteUp(ctx context.Context, id uuid.UUID) (*WriteUp, error)
	Close(ctx context.Context, id uuid.UUID) error
	Patient(patientID string) records.PatientRecord
}

// DefaultSymptoms is the checklist every encounter starts with.
var DefaultSymptoms = []string{
	"Fatigue", "Weight Loss", "Fever", "Night Sweats",
	"Abdominal Pain", "Nausea", "Jaundice", "Loss of Appetite",
}

type Options struct {
	DefaultPatientID string
	Symptoms         []string
}

// session serializes state changes for one encounter. Extraction calls run
// outside the lock, so several may be in flight at once.
type session struct {
	mu    sync.Mutex
	enc   Encounter
	store *SessionStore
	// epoch advances on Reset and Close so responses to earlier transcripts
	// are dropped.
	epoch  int
	closed bool
}

type service struct {
	kv        kv.Store
	extractor Extractor
	stt       Transcriber
	source    RecordSource
	reportSvc ReportService
	log       zerolog.Logger
	opts      Options

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
	// closes counts Close calls, letting lookup detect one that raced its load.
	closes uint64
}

func NewService(store kv.Store, extractor Extractor, stt Transcriber, source RecordSource, report ReportService, logger zerolog.Logger, opts Options) Service {
	if opts.Symptoms == nil {
		opts.Symptoms = DefaultSymptoms
	}
	return &service{
		kv:        store,
		extractor: extractor,
		stt:       stt,
		source:    source,
		reportSvc: report,
		log:       logger,
		opts:      opts,
		sessions:  make(map[uuid.UUID]*session),
	}
}

func (s *service) newStore(id uuid.UUID) *SessionStore {
	return NewSessionStore(s.kv, "encounter:"+id.String(), s.log)
}

func (s *service) Patient(patientID string) records.PatientRecord {
	if s.source == nil {
		return records.EmptyPatient(patientID)
	}
	return s.source.Patient(patientID)
}

func applyPatient(e *Encounter, rec records.PatientRecord) {
	e.PatientID = rec.PatientID
	e.Labs = rec.Labs
	e.Abnormal = rec.Abnormal
	e.History = rec.History
}

func (s *service) Create(ctx context.Context, patientID string) (*Encounter, error) {
	if patientID == "" {
		patientID = s.opts.DefaultPatientID
	}
	now := time.Now()
	sess := &session{
		enc: Encounter{
			ID:         uuid.New(),
			Status:     StatusIdle,
			Transcript: []string{},
			Snapshot:   NewSnapshot(s.opts.Symptoms...),
			CreatedAt:  now,
			UpdatedAt:  now,
		},
	}
	sess.store = s.newStore(sess.enc.ID)
	applyPatient(&sess.enc, s.Patient(patientID))

	s.mu.Lock()
	s.sessions[sess.enc.ID] = sess
	s.mu.Unlock()

	sess.store.Save(ctx, sess.enc.State())
	s.log.Info().Str("encounter", sess.enc.ID.String()).Str("patient", patientID).Msg("encounter created")
	return sess.enc.clone(), nil
}

// lookup returns the live session, rehydrating it from the store after a
// restart. The store is read without holding the service lock.
func (s *service) lookup(ctx context.Context, id uuid.UUID) (*session, error) {
	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok {
		s.mu.Unlock()
		return sess, nil
	}
	closes := s.closes
	s.mu.Unlock()

	store := s.newStore(id)
	st := store.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	if s.closes != closes {
		// A Close may have cleared the store after our read.
		st = store.Load(ctx)
	}
	if st == nil {
		return nil, ErrEncounterNotFound
	}
	sess := &session{enc: rehydrate(id, st, s.opts.Symptoms), store: store}
	s.sessions[id] = sess
	s.log.Info().Str("encounter", id.String()).Msg("encounter restored from store")
	return sess, nil
}

// acquire returns the session locked. A session closed since lookup is
// reported as not found.
func (s *service) acquire(ctx context.Context, id uuid.UUID) (*session, error) {
	sess, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return nil, ErrEncounterNotFound
	}
	return sess, nil
}

func rehydrate(id uuid.UUID, st *SessionState, seed []string) Encounter {
	snap := Reconcile(NewSnapshot(seed...), Extraction{Symptoms: st.Symptoms, Vitals: st.Vitals})
	e := Encounter{
		ID:         id,
		Status:     StatusIdle,
		Transcript: []string{},
		Snapshot:   snap,
		Labs:       records.LabPanel{Results: append([]records.LabResult{}, st.LabResults...), TestDate: st.LabTestDate},
		History:    records.EmptyHistory(),
		Diagnoses:  st.Diagnoses,
		RawText:    st.RawText,
	}
	e.Abnormal = records.Abnormal(e.Labs.Results)
	if st.MedicalHistory != nil {
		e.History = *st.MedicalHistory
	}
	if ts, err := time.Parse(time.RFC3339Nano, st.Timestamp); err == nil {
		e.CreatedAt, e.UpdatedAt = ts, ts
	}
	return e
}

// mutate applies fn under the session lock and persists the result.
func (s *service) mutate(ctx context.Context, id uuid.UUID, fn func(e *Encounter) error) (*Encounter, error) {
	sess, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	if err := fn(&sess.enc); err != nil {
		return nil, err
	}
	sess.enc.UpdatedAt = time.Now()
	sess.store.Save(ctx, sess.enc.State())
	return sess.enc.clone(), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	sess, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	return sess.enc.clone(), nil
}

func (s *service) Start(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	return s.mutate(ctx, id, func(e *Encounter) error {
		e.Status = StatusListening
		return nil
	})
}

// Stop ends listening. Accumulated symptoms and vitals are kept and
// extraction responses still in flight will apply when they arrive.
func (s *service) Stop(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	return s.mutate(ctx, id, func(e *Encounter) error {
		e.Status = StatusIdle
		return nil
	})
}

func (s *service) HandleFragment(ctx context.Context, id uuid.UUID, text string) (*Encounter, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyFragment
	}
	sess, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.enc.Status != StatusListening {
		sess.mu.Unlock()
		return nil, ErrNotListening
	}
	sess.enc.Transcript = append(sess.enc.Transcript, text)
	transcript := strings.Join(sess.enc.Transcript, " ")
	epoch := sess.epoch
	sess.mu.Unlock()

	ev, err := s.extractor.Extract(ctx, transcript)
	if err != nil {
		s.log.Error().Err(err).Str("encounter", id.String()).Msg("extraction failed, fragment dropped")
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		s.log.Info().Str("encounter", id.String()).Msg("dropping extraction for closed encounter")
		return nil, ErrEncounterNotFound
	}
	if sess.epoch != epoch {
		s.log.Info().Str("encounter", id.String()).Msg("dropping extraction from before reset")
		return sess.enc.clone(), nil
	}
	next, rejected := ReconcileWithReport(sess.enc.Snapshot, ev)
	for _, r := range rejected {
		s.log.Debug().
			Str("encounter", id.String()).
			Str("field", r.Field).
			Str("value", r.Value).
			Str("reason", r.Reason).
			Msg("extraction candidate rejected")
	}
	sess.enc.Snapshot = next
	sess.enc.UpdatedAt = time.Now()
	sess.store.Save(ctx, sess.enc.State())
	return sess.enc.clone(), nil
}

func (s *service) HandleAudio(ctx context.Context, id uuid.UUID, audioData []byte) (string, *Encounter, error) {
	if s.stt == nil {
		return "", nil, fmt.Errorf("%w: no speech-to-text client configured", ErrTranscription)
	}
	if _, err := s.lookup(ctx, id); err != nil {
		return "", nil, err
	}
	text, err := s.stt.Transcribe(ctx, audioData)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrTranscription, err)
	}
	if strings.TrimSpace(text) == "" {
		// Silence: nothing to extract.
		e, err := s.Get(ctx, id)
		return "", e, err
	}
	e, err := s.HandleFragment(ctx, id, text)
	return text, e, err
}

// SelectPatient replaces labs and medical history wholesale. An unknown id
// leaves them empty.
func (s *service) SelectPatient(ctx context.Context, id uuid.UUID, patientID string) (*Encounter, error) {
	rec := s.Patient(patientID)
	if !rec.Found {
		s.log.Warn().Str("encounter", id.String()).Str("patient", patientID).Msg("patient not found in record sources")
	}
	return s.mutate(ctx, id, func(e *Encounter) error {
		applyPatient(e, rec)
		return nil
	})
}

// Reset discards accumulated symptoms, vitals and transcript. Patient
// records stay.
func (s *service) Reset(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	sess, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	sess.epoch++
	sess.enc.Snapshot = NewSnapshot(s.opts.Symptoms...)
	sess.enc.Transcript = []string{}
	sess.enc.Diagnoses = nil
	sess.enc.RawText = ""
	sess.enc.UpdatedAt = time.Now()
	sess.store.Save(ctx, sess.enc.State())
	return sess.enc.clone(), nil
}

func (s *service) ResetDiagnosis(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	sess, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer sess.mu.Unlock()
	sess.enc.Diagnoses = nil
	sess.enc.RawText = ""
	sess.store.ResetKeepClinicalSignal(ctx)
	return sess.enc.clone(), nil
}

// Finish stops listening, stores the write-up and sends the doctor report
// in the background.
func (s *service) Finish(ctx context.Context, id uuid.UUID) (*WriteUp, error) {
	sess, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.enc.Status = StatusIdle
	sess.enc.UpdatedAt = time.Now()
	enc := *sess.enc.clone()
	sess.store.Save(ctx, enc.State())
	content := ""
	if s.reportSvc != nil {
		content = s.reportSvc.ComposeWriteUp(enc)
	}
	w := sess.store.SaveWriteUp(ctx, content, enc.ID.String())
	sess.mu.Unlock()

	if s.reportSvc == nil {
		return &w, nil
	}

	go func(e Encounter, w WriteUp) {
		bgCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := s.reportSvc.SendDoctorReport(bgCtx, e, w); err != nil {
			s.log.Error().Err(err).Str("encounter", e.ID.String()).Msg("failed to send report")
		}
	}(enc, w)

	return &w, nil
}

func (s *service) State(ctx context.Context, id uuid.UUID) (*SessionState, error) {
	sess, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if st := sess.store.Load(ctx); st != nil {
		return st, nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return nil, ErrEncounterNotFound
	}
	st := sess.enc.State()
	return &st, nil
}

func (s *service) WriteUp(ctx context.Context, id uuid.UUID) (*WriteUp, error) {
	sess, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	w := sess.store.LoadWriteUp(ctx)
	if w == nil {
		return nil, ErrWriteUpNotFound
	}
	return w, nil
}

// Close clears persisted state and forgets the encounter. Extraction
// responses still in flight are dropped.
func (s *service) Close(ctx context.Context, id uuid.UUID) error {
	sess, err := s.acquire(ctx, id)
	if err != nil {
		return err
	}
	sess.closed = true
	sess.epoch++
	sess.store.Clear(ctx)
	sess.mu.Unlock()

	s.mu.Lock()
	if s.sessions[id] == sess {
		delete(s.sessions, id)
	}
	s.closes++
	s.mu.Unlock()
	s.log.Info().Str("encounter", id.String()).Msg("encounter closed")
	return nil
}
