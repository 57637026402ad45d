package encounter

import "errors"

var (
	ErrEncounterNotFound = errors.New("encounter not found")
	ErrNotListening      = errors.New("encounter is not listening")
	ErrEmptyFragment     = errors.New("empty transcript fragment")
	ErrExtractionFailed  = errors.New("extraction failed")
	ErrTranscription     = errors.New("transcription failed")
	ErrWriteUpNotFound   = errors.New("write-up not found")
)
