package agent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractionClient_Extract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "I have had a fever since Monday", req["transcript"])

		w.Write([]byte(`{"symptoms":["fever"],"vitals":{"temperature":"101.2°F","pulse":"98 bpm"}}`))
	}))
	defer srv.Close()

	c := NewExtractionClient(srv.URL, 5*time.Second)
	ev, err := c.Extract(context.Background(), "I have had a fever since Monday")

	require.NoError(t, err)
	assert.Equal(t, []string{"fever"}, ev.Symptoms)
	assert.Equal(t, "101.2°F", ev.Vitals.Temperature)
	assert.Equal(t, "98 bpm", ev.Vitals.Pulse)
	assert.Empty(t, ev.Vitals.BloodPressure)
}

func TestExtractionClient_NonSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewExtractionClient(srv.URL, time.Second).Extract(context.Background(), "text")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestExtractionClient_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symptoms":`))
	}))
	defer srv.Close()

	_, err := NewExtractionClient(srv.URL, time.Second).Extract(context.Background(), "text")
	assert.Error(t, err)
}

func TestWhisperClient_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "clip.wav", header.Filename)
		assert.Equal(t, []byte("RIFF"), data)
		assert.Equal(t, "en", r.FormValue("language"))

		w.Write([]byte(`{"text":"  my head hurts\n","language":"en"}`))
	}))
	defer srv.Close()

	c := NewWhisperClient(srv.URL, time.Second).WithLanguage("en")
	text, err := c.Transcribe(context.Background(), []byte("RIFF"))

	require.NoError(t, err)
	assert.Equal(t, "my head hurts", text)
}

func TestWhisperClient_EmptyClipIsNotSent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request for an empty clip")
	}))
	defer srv.Close()

	text, err := NewWhisperClient(srv.URL, time.Second).Transcribe(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestClipName(t *testing.T) {
	assert.Equal(t, "clip.wav", clipName([]byte("RIFF....WAVE")))
	assert.Equal(t, "clip.ogg", clipName([]byte("OggS\x00")))
	assert.Equal(t, "clip.webm", clipName([]byte{0x1A, 0x45, 0xDF, 0xA3, 0x01}))
	assert.Equal(t, "clip.bin", clipName([]byte("??")))
}

func TestWhisperClient_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("model not loaded"))
	}))
	defer srv.Close()

	_, err := NewWhisperClient(srv.URL, time.Second).Transcribe(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}
