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

const (
	DefaultGeminiBaseURL  = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel    = "gemini-2.5-flash"
	DefaultGeminiTTSModel = "gemini-2.5-flash-preview-tts"
	DefaultGeminiVoice    = "Puck"
)

// GeminiProvider talks to the Gemini generateContent API. It supports
// plain chat, schema-constrained JSON generation and speech synthesis.
type GeminiProvider struct {
	BaseURL  string
	APIKey   string
	Model    string
	TTSModel string
	Voice    string
	Client   *http.Client
}

type geminiPart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64 payload, kept encoded
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiSpeechConfig struct {
	VoiceConfig struct {
		PrebuiltVoiceConfig struct {
			VoiceName string `json:"voiceName"`
		} `json:"prebuiltVoiceConfig"`
	} `json:"voiceConfig"`
}

type geminiGenerationConfig struct {
	ResponseMimeType   string              `json:"responseMimeType,omitempty"`
	ResponseSchema     *Schema             `json:"responseSchema,omitempty"`
	ResponseModalities []string            `json:"responseModalities,omitempty"`
	SpeechConfig       *geminiSpeechConfig `json:"speechConfig,omitempty"`
}

type geminiGenerateReq struct {
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGenerateResp struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

func NewGeminiProvider(baseURL, apiKey, model, ttsModel, voice string) *GeminiProvider {
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	if ttsModel == "" {
		ttsModel = DefaultGeminiTTSModel
	}
	if voice == "" {
		voice = DefaultGeminiVoice
	}
	return &GeminiProvider{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		Model:    model,
		TTSModel: ttsModel,
		Voice:    voice,
		Client:   &http.Client{Timeout: 90 * time.Second},
	}
}

// geminiRole maps our conversation roles onto the wire roles. The API
// calls the assistant side "model".
func geminiRole(role string) string {
	if role == RoleAssistant {
		return "model"
	}
	return "user"
}

func (p *GeminiProvider) generate(ctx context.Context, model string, req geminiGenerateReq) (*geminiGenerateResp, error) {
	if p.Client == nil {
		return nil, &TransportError{Message: "gemini: http client is nil"}
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, &TransportError{Message: "gemini: api key is required"}
	}

	b, err := json.Marshal(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", strings.TrimRight(p.BaseURL, "/"), model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.APIKey)

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32*1024*1024))
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		var decoded geminiGenerateResp
		if json.Unmarshal(body, &decoded) == nil && decoded.Error != nil {
			msg = decoded.Error.Message
		}
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, &TransportError{Status: resp.StatusCode, Message: msg}
	}

	var decoded geminiGenerateResp
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &TransportError{Err: err}
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return nil, &TransportError{Status: decoded.Error.Code, Message: decoded.Error.Message}
	}
	return &decoded, nil
}

// firstText returns the first non-empty text part of the first candidate.
func (r *geminiGenerateResp) firstText() string {
	for _, c := range r.Candidates {
		for _, part := range c.Content.Parts {
			if part.Text != "" {
				return part.Text
			}
		}
	}
	return ""
}

// firstInlineData returns the first inline payload of the first
// candidate, still base64 encoded.
func (r *geminiGenerateResp) firstInlineData() string {
	for _, c := range r.Candidates {
		for _, part := range c.Content.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				return part.InlineData.Data
			}
		}
	}
	return ""
}

func (p *GeminiProvider) Chat(ctx context.Context, system string, messages []Message) (string, error) {
	req := geminiGenerateReq{
		Contents: make([]geminiContent, 0, len(messages)),
	}
	if system != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	for _, m := range messages {
		req.Contents = append(req.Contents, geminiContent{
			Role:  geminiRole(m.Role),
			Parts: []geminiPart{{Text: m.Content}},
		})
	}

	resp, err := p.generate(ctx, p.Model, req)
	if err != nil {
		return "", err
	}
	text := resp.firstText()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (p *GeminiProvider) GenerateJSON(ctx context.Context, system, prompt string, schema *Schema) (string, error) {
	if schema == nil {
		return "", errors.New("gemini: schema is required")
	}
	req := geminiGenerateReq{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   schema,
		},
	}
	if system != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}

	resp, err := p.generate(ctx, p.Model, req)
	if err != nil {
		return "", err
	}
	text := resp.firstText()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (p *GeminiProvider) GenerateSpeech(ctx context.Context, text string) (string, error) {
	cfg := &geminiGenerationConfig{ResponseModalities: []string{"AUDIO"}, SpeechConfig: &geminiSpeechConfig{}}
	cfg.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName = p.Voice

	req := geminiGenerateReq{
		Contents:         []geminiContent{{Parts: []geminiPart{{Text: text}}}},
		GenerationConfig: cfg,
	}

	resp, err := p.generate(ctx, p.TTSModel, req)
	if err != nil {
		return "", err
	}
	payload := resp.firstInlineData()
	if payload == "" {
		return "", ErrEmptyResponse
	}
	return payload, nil
}
