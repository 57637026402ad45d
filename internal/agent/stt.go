package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// WhisperClient sends recorded clips to a Whisper transcription endpoint.
type WhisperClient struct {
	url        string
	language   string
	httpClient *http.Client
}

func NewWhisperClient(url string, timeout time.Duration) *WhisperClient {
	return &WhisperClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// WithLanguage pins the spoken language instead of letting the model detect it.
func (c *WhisperClient) WithLanguage(lang string) *WhisperClient {
	c.language = lang
	return c
}

type transcription struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// clipName picks an upload file name from the container signature; browsers
// record webm or ogg, desktop tools usually wav.
func clipName(audio []byte) string {
	switch {
	case bytes.HasPrefix(audio, []byte("RIFF")):
		return "clip.wav"
	case bytes.HasPrefix(audio, []byte("OggS")):
		return "clip.ogg"
	case bytes.HasPrefix(audio, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return "clip.webm"
	}
	return "clip.bin"
}

func (c *WhisperClient) encode(audio []byte) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if c.language != "" {
		if err := mw.WriteField("language", c.language); err != nil {
			return nil, "", err
		}
	}
	part, err := mw.CreateFormFile("file", clipName(audio))
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return body, mw.FormDataContentType(), nil
}

// Transcribe returns the trimmed text of the clip. An empty clip is silence
// and is not sent.
func (c *WhisperClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", nil
	}
	body, contentType, err := c.encode(audio)
	if err != nil {
		return "", fmt.Errorf("encode clip: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("transcription API error: %s - %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var out transcription
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode transcription: %w", err)
	}
	return strings.TrimSpace(out.Text), nil
}
