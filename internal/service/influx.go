package service

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// InfluxWriter forwards line-protocol payloads to the InfluxDB v2 write API.
// Payloads pass through verbatim; this client never parses them.
type InfluxWriter struct {
	client   *http.Client
	writeURL string
	token    string
}

func NewInfluxWriter(baseURL, token, org, bucket string, timeout time.Duration) *InfluxWriter {
	params := url.Values{}
	params.Set("org", org)
	params.Set("bucket", bucket)
	params.Set("precision", "ns")

	return &InfluxWriter{
		client:   &http.Client{Timeout: timeout},
		writeURL: baseURL + "/api/v2/write?" + params.Encode(),
		token:    token,
	}
}

func (w *InfluxWriter) Write(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.writeURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+w.token)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	start := time.Now()

	resp, err := w.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		log.Error().
			Err(err).
			Dur("elapsed", elapsed).
			Msg("influxdb write error")
		return fmt.Errorf("write request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		log.Error().
			Int("status", resp.StatusCode).
			Dur("elapsed", elapsed).
			Msg("influxdb write rejected")
		return fmt.Errorf("write failed with status %d", resp.StatusCode)
	}

	log.Debug().
		Int("bytes", len(payload)).
		Dur("elapsed", elapsed).
		Msg("metrics forwarded to influxdb")

	return nil
}
