package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"encounter-assistant/internal/encounter"
)

// ExtractionClient calls the remote inference service that reads a
// transcript and proposes symptoms and vitals.
type ExtractionClient struct {
	url        string
	httpClient *http.Client
}

func NewExtractionClient(url string, timeout time.Duration) *ExtractionClient {
	return &ExtractionClient{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type extractRequest struct {
	Transcript string `json:"transcript"`
}

type extractResponse struct {
	Symptoms []string `json:"symptoms"`
	Vitals   struct {
		Temperature   string `json:"temperature"`
		BloodPressure string `json:"bloodPressure"`
		Pulse         string `json:"pulse"`
	} `json:"vitals"`
}

// Extract sends the whole transcript seen so far. Any non-200 answer is an
// error; there is no retry.
func (c *ExtractionClient) Extract(ctx context.Context, transcript string) (encounter.Extraction, error) {
	body, err := json.Marshal(extractRequest{Transcript: transcript})
	if err != nil {
		return encounter.Extraction{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return encounter.Extraction{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return encounter.Extraction{}, fmt.Errorf("extraction request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return encounter.Extraction{}, fmt.Errorf("extraction API error: %s - %s", resp.Status, string(respBody))
	}

	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return encounter.Extraction{}, fmt.Errorf("decode extraction response: %w", err)
	}

	return encounter.Extraction{
		Symptoms: out.Symptoms,
		Vitals: encounter.Vitals{
			Temperature:   out.Vitals.Temperature,
			BloodPressure: out.Vitals.BloodPressure,
			Pulse:         out.Vitals.Pulse,
		},
	}, nil
}
