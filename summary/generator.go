package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"vidscribe/config"
	"vidscribe/errors"
)

// Generator turns a transcript into derived text. The service only
// cares that text comes back; what model produces it is the
// implementation's business.
type Generator interface {
	Generate(ctx context.Context, instruction, transcript string) (string, error)
}

// OpenAIGenerator calls an OpenAI-compatible chat completions API.
type OpenAIGenerator struct {
	cfg    config.SummaryConfig
	client *http.Client
	log    *logrus.Logger
}

func NewOpenAIGenerator(cfg config.SummaryConfig, log *logrus.Logger) *OpenAIGenerator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &OpenAIGenerator{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RequestTimeout},
		log:    log,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (g *OpenAIGenerator) Generate(ctx context.Context, instruction, transcript string) (string, error) {
	const op = "OpenAIGenerator.Generate"

	body, err := json.Marshal(chatRequest{
		Model: g.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: instruction},
			{Role: "user", Content: transcript},
		},
	})
	if err != nil {
		return "", errors.Internal(op, err, "Failed to encode request")
	}

	url := strings.TrimSuffix(g.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", errors.Internal(op, err, "Failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", errors.Internal(op, err, "Generation request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Internal(op, err, "Failed to read response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", errors.Internal(op, nil,
			fmt.Sprintf("Generation API returned %d", resp.StatusCode))
	}

	var out chatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", errors.Internal(op, err, "Failed to parse generation response")
	}
	if out.Error != nil {
		return "", errors.Internal(op, nil, out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", errors.Internal(op, nil, "Generation returned no choices")
	}

	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", errors.Internal(op, nil, "Generation returned empty text")
	}
	return text, nil
}
