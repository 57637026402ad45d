package encounter

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"encounter-assistant/internal/platform/kv"
)

const (
	diagnosisKey = "currentDiagnosis"
	writeUpKey   = "currentWriteUp"
)

// SessionStore persists one session's state and write-up. Each record is
// overwritten whole; callers read, modify and write the full object.
// Storage failures are logged and never returned.
type SessionStore struct {
	kv  kv.Store
	ns  string
	log zerolog.Logger
	now func() time.Time
}

func NewSessionStore(store kv.Store, namespace string, logger zerolog.Logger) *SessionStore {
	return &SessionStore{
		kv:  store,
		ns:  namespace,
		log: logger.With().Str("session", namespace).Logger(),
		now: time.Now,
	}
}

func (s *SessionStore) key(name string) string {
	if s.ns == "" {
		return name
	}
	return s.ns + ":" + name
}

func (s *SessionStore) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func (s *SessionStore) get(ctx context.Context, name string, dst any) bool {
	data, err := s.kv.Get(ctx, s.key(name))
	if errors.Is(err, kv.ErrNotFound) {
		return false
	}
	if err != nil {
		s.log.Error().Err(err).Str("key", name).Msg("error retrieving record")
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.log.Error().Err(err).Str("key", name).Msg("error decoding record")
		return false
	}
	return true
}

func (s *SessionStore) set(ctx context.Context, name string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.log.Error().Err(err).Str("key", name).Msg("error encoding record")
		return
	}
	if err := s.kv.Set(ctx, s.key(name), data); err != nil {
		s.log.Error().Err(err).Str("key", name).Msg("error storing record")
	}
}

func (s *SessionStore) del(ctx context.Context, name string) {
	if err := s.kv.Delete(ctx, s.key(name)); err != nil {
		s.log.Error().Err(err).Str("key", name).Msg("error clearing record")
	}
}

// Load returns the stored state, or nil when none is stored or it cannot be read.
func (s *SessionStore) Load(ctx context.Context) *SessionState {
	var st SessionState
	if !s.get(ctx, diagnosisKey, &st) {
		return nil
	}
	return &st
}

// Save overwrites the stored state, stamping Timestamp when it is empty.
// The stamped state is returned.
func (s *SessionStore) Save(ctx context.Context, state SessionState) SessionState {
	if state.Timestamp == "" {
		state.Timestamp = s.timestamp()
	}
	if state.Diagnoses == nil {
		state.Diagnoses = []Diagnosis{}
	}
	if state.Symptoms == nil {
		state.Symptoms = []string{}
	}
	s.set(ctx, diagnosisKey, state)
	return state
}

// ResetKeepClinicalSignal drops diagnoses and the write-up while keeping
// symptoms, vitals, labs and medical history. No stored state is a no-op.
func (s *SessionStore) ResetKeepClinicalSignal(ctx context.Context) {
	cur := s.Load(ctx)
	if cur == nil {
		return
	}
	s.Save(ctx, SessionState{
		Diagnoses:      []Diagnosis{},
		Symptoms:       cur.Symptoms,
		Vitals:         cur.Vitals,
		LabResults:     cur.LabResults,
		LabTestDate:    cur.LabTestDate,
		MedicalHistory: cur.MedicalHistory,
	})
	s.ClearWriteUp(ctx)
}

// Clear removes the state and the write-up.
func (s *SessionStore) Clear(ctx context.Context) {
	s.del(ctx, diagnosisKey)
	s.ClearWriteUp(ctx)
}

func (s *SessionStore) SaveWriteUp(ctx context.Context, content, diagnosisID string) WriteUp {
	w := WriteUp{
		Content:     content,
		CreatedAt:   s.timestamp(),
		DiagnosisID: diagnosisID,
	}
	s.set(ctx, writeUpKey, w)
	return w
}

func (s *SessionStore) LoadWriteUp(ctx context.Context) *WriteUp {
	var w WriteUp
	if !s.get(ctx, writeUpKey, &w) {
		return nil
	}
	return &w
}

func (s *SessionStore) ClearWriteUp(ctx context.Context) {
	s.del(ctx, writeUpKey)
}
