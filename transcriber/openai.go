package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	openAIURL          = "https://api.openai.com/v1/audio/transcriptions"
	openAIDefaultModel = "gpt-4o-transcribe"
)

type OpenAI struct {
	httpEngine
}

func NewOpenAI(apiKey, model string) *OpenAI {
	if model == "" {
		model = openAIDefaultModel
	}
	o := &OpenAI{httpEngine: newHTTPEngine("openai", openAIURL, apiKey, model, "json")}
	go warm(o.client)
	return o
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Transcribe(ctx context.Context, samples []int16, sampleRate int, lang string) (string, error) {
	resp, err := o.post(ctx, samples, sampleRate, lang)
	if err != nil {
		return "", err
	}

	var oResp struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(resp.Body, &oResp); err != nil {
		return "", inferenceError(o.name, fmt.Errorf("response parse error: %w", err))
	}
	return strings.TrimSpace(oResp.Text), nil
}
