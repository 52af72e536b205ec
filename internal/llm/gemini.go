package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultEndpoint = "https://generativelanguage.googleapis.com/v1beta"

// architectPrompt instructs the model to emit the transcript format
// that respparse understands.
const architectPrompt = `You are a vault assistant. Your goal is to organize notes and create structured knowledge.

INPUT:
1. User Instructions (Intent)
2. Raw Note Content
3. Vault Skeleton (Existing paths for deep linking)

OUTPUT FORMAT:
You must output a single text blob using these delimiters:

%%EXPLANATION%%
(Short reasoning: why you chose these folders/files)

%%FILE: <suggested_folder>/<suggested_filename>.md%%
---
title: <Title>
tags: [<tag1>, <tag2>]
folder: <folder_path>
---
<Content with [[Deep Links]] to Skeleton>

RULES:
1. Always use the %%FILE: path%% delimiter.
2. Ensure frontmatter is valid YAML.
3. Do NOT invent links. Only link to items in the Vault Skeleton.
4. If the user asks to split a note, create multiple %%FILE%% blocks.`

// Gemini calls the Google Generative Language REST API. No SDK, one
// endpoint, deterministic generation settings for automation work.
type Gemini struct {
	model    string
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewGemini creates the adapter. A missing API key is a fatal
// configuration error raised here, before any batch work begins.
func NewGemini(model, apiKey string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm: API key not set")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Gemini{
		model:    model,
		apiKey:   apiKey,
		endpoint: defaultEndpoint,
		client:   &http.Client{Timeout: 120 * time.Second},
	}, nil
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateProposal implements Client.
func (g *Gemini) GenerateProposal(ctx context.Context, instructions, body, vaultContext, skeleton string) (string, error) {
	prompt := fmt.Sprintf(`=== USER INSTRUCTIONS ===
%s

=== RAW NOTE CONTENT ===
%s

=== VAULT CONTEXT ===
%s`, instructions, body, vaultContext)
	if skeleton != "" {
		prompt += fmt.Sprintf("\n\n=== VAULT MAP (Use these for Deep Links) ===\n%s", skeleton)
	}
	prompt += "\n\nPlease generate a multi-file proposal following the output format."

	return g.generate(ctx, architectPrompt, prompt)
}

func (g *Gemini) generate(ctx context.Context, system, prompt string) (string, error) {
	reqBody := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: system}}},
		Contents:          []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenConfig{
			Temperature:     0.0,
			TopP:            0.95,
			TopK:            40,
			MaxOutputTokens: 8192,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.endpoint, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: call model: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm: read response: %w", err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := resp.Status
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return "", fmt.Errorf("llm: model call failed: %s", msg)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("llm: empty response")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

var _ Client = (*Gemini)(nil)
