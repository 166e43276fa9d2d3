package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HuggingFaceProvider calls the Hugging Face inference API. It is the last
// resort in the default chain; free-tier models cold-start slowly and fail
// often, which the orchestrator's fallback absorbs.
type HuggingFaceProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

type hfGenerateReq struct {
	Inputs     string `json:"inputs"`
	Parameters struct {
		MaxNewTokens int  `json:"max_new_tokens"`
		ReturnFull   bool `json:"return_full_text"`
	} `json:"parameters"`
}

type hfGenerateResp []struct {
	GeneratedText string `json:"generated_text"`
}

func NewHuggingFaceProvider(baseURL, apiKey, model string) *HuggingFaceProvider {
	if baseURL == "" {
		baseURL = "https://api-inference.huggingface.co"
	}
	if model == "" {
		model = "microsoft/DialoGPT-medium"
	}
	return &HuggingFaceProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

func (p *HuggingFaceProvider) ID() string { return "huggingface" }

func (p *HuggingFaceProvider) Generate(ctx context.Context, prompt string) (string, error) {
	if p.Client == nil {
		return "", errors.New("huggingface: http client is nil")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return "", errors.New("huggingface: api key is required")
	}

	var reqBody hfGenerateReq
	reqBody.Inputs = prompt
	reqBody.Parameters.MaxNewTokens = 256
	reqBody.Parameters.ReturnFull = false

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s", strings.TrimRight(p.BaseURL, "/"), p.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("huggingface: %s", msg)
	}

	var decoded hfGenerateResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if len(decoded) == 0 {
		return "", errors.New("huggingface: empty response")
	}
	text := strings.TrimSpace(decoded[0].GeneratedText)
	if text == "" {
		return "", errors.New("huggingface: empty response")
	}
	return text, nil
}
