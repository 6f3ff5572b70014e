package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	groqURL          = "https://api.groq.com/openai/v1/audio/transcriptions"
	groqDefaultModel = "whisper-large-v3-turbo"

	// Segments above this are treated as silence or background noise.
	noSpeechThreshold = 0.8
)

type Groq struct {
	httpEngine
}

func NewGroq(apiKey, model string) *Groq {
	if model == "" {
		model = groqDefaultModel
	}
	g := &Groq{httpEngine: newHTTPEngine("groq", groqURL, apiKey, model, "verbose_json")}
	go warm(g.client)
	return g
}

func (g *Groq) Name() string { return "groq" }

type groqResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Text         string  `json:"text"`
		NoSpeechProb float64 `json:"no_speech_prob"`
		AvgLogProb   float64 `json:"avg_logprob"`
	} `json:"segments"`
}

func (g *Groq) Transcribe(ctx context.Context, samples []int16, sampleRate int, lang string) (string, error) {
	resp, err := g.post(ctx, samples, sampleRate, lang)
	if err != nil {
		return "", err
	}

	var gResp groqResponse
	if err := json.Unmarshal(resp.Body, &gResp); err != nil {
		return "", inferenceError(g.name, fmt.Errorf("response parse error: %w", err))
	}

	if len(gResp.Segments) > 0 {
		speech := false
		for _, seg := range gResp.Segments {
			if seg.NoSpeechProb <= noSpeechThreshold {
				speech = true
				break
			}
		}
		if !speech {
			return "", nil
		}
	}
	return strings.TrimSpace(gResp.Text), nil
}
