package transcriber

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"sayit/apperr"
	"sayit/encoder"
	"sayit/log"
)

// httpEngine uploads a whole recording to an OpenAI-compatible
// /audio/transcriptions endpoint.
type httpEngine struct {
	name   string
	client *TracedClient
	apiURL string
	apiKey string
	model  string
	format string // response_format
}

func newHTTPEngine(name, apiURL, apiKey, model, format string) httpEngine {
	return httpEngine{
		name:   name,
		client: NewTracedClient(apiURL),
		apiURL: apiURL,
		apiKey: apiKey,
		model:  model,
		format: format,
	}
}

// encode prefers FLAC; it only supports the 16 kHz capture rate.
func encode(samples []int16, sampleRate int) ([]byte, string, error) {
	if sampleRate == encoder.SampleRate {
		data, err := encoder.FLAC(samples)
		return data, "flac", err
	}
	return encoder.WAV(samples, sampleRate), "wav", nil
}

func (e *httpEngine) post(ctx context.Context, samples []int16, sampleRate int, lang string) (*TracedResponse, error) {
	encStart := time.Now()
	audio, ext, err := encode(samples, sampleRate)
	if err != nil {
		return nil, inferenceError(e.name, fmt.Errorf("encoding audio: %w", err))
	}
	encodeTime := time.Since(encStart)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "audio."+ext)
	if err != nil {
		return nil, inferenceError(e.name, err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, inferenceError(e.name, err)
	}
	writer.WriteField("model", e.model)
	writer.WriteField("response_format", e.format)
	if lang != "" {
		writer.WriteField("language", lang)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.apiURL, &body)
	if err != nil {
		return nil, inferenceError(e.name, err)
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, inferenceError(e.name, ctxErr)
		}
		return nil, inferenceError(e.name, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s API error %d: %s",
			apperr.ErrModelUnavailable, e.name, resp.StatusCode, truncate(resp.Body, 200))
	default:
		return nil, inferenceError(e.name,
			fmt.Errorf("API error %d: %s", resp.StatusCode, truncate(resp.Body, 200)))
	}

	m := resp.Metrics
	log.TranscriptionMetrics(log.Metrics{
		Engine:      e.name,
		AudioS:      float64(len(samples)) / float64(max(sampleRate, 1)),
		UploadKB:    float64(len(audio)) / 1024,
		EncodeMs:    ms(encodeTime),
		DNSMs:       ms(m.DNS),
		TLSMs:       ms(m.TLS),
		TTFBMs:      ms(m.TTFB),
		TotalMs:     ms(m.Total),
		ConnReused:  m.ConnReused,
		TLSProtocol: m.TLSProtocol,
	})
	log.Debug(fmt.Sprintf("%s ratelimit: %s/%s", e.name,
		firstNonEmpty(resp.Header, "x-ratelimit-remaining-requests"),
		firstNonEmpty(resp.Header, "x-ratelimit-limit-requests")))
	return resp, nil
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
