// Package gemini binds conversation.ChatService to the Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"rikyu/internal/conversation"
	"rikyu/internal/logging"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

var errNoCandidates = errors.New("gemini: response has no text candidates")

// Config holds configuration for the Gemini client.
type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint; empty uses the SDK default.
	BaseURL string
	// Timeout applies to the underlying HTTP request; zero keeps the transport default.
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey: apiKey,
		Model:  DefaultModel,
	}
}

// Client implements conversation.ChatService. The SDK client is created on
// first use so a missing key never fails construction.
type Client struct {
	cfg    Config
	client *genai.Client
	log    *zap.Logger
}

// NewClient creates a new Gemini chat client.
func NewClient(cfg Config) *Client {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	return &Client{cfg: cfg, log: logging.Get(logging.CategoryAPI)}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

func (c *Client) sdk(ctx context.Context) (*genai.Client, error) {
	if c.client != nil {
		return c.client, nil
	}
	cc := &genai.ClientConfig{
		APIKey:  c.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if c.cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = c.cfg.BaseURL
	}
	if c.cfg.Timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: c.cfg.Timeout}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	c.client = client
	return client, nil
}

// Send opens a chat seeded with req.History, sends req.Final once and returns
// the reply text.
func (c *Client) Send(ctx context.Context, req conversation.Request) (string, error) {
	client, err := c.sdk(ctx)
	if err != nil {
		return "", err
	}

	history := make([]*genai.Content, 0, len(req.History))
	for _, m := range req.History {
		history = append(history, genai.NewContentFromText(m.Text, toGenAIRole(m.Role)))
	}

	chat, err := client.Chats.Create(ctx, c.cfg.Model, generationConfig(req.Params), history)
	if err != nil {
		return "", fmt.Errorf("gemini: create chat: %w", err)
	}

	start := time.Now()
	c.log.Debug("sending message",
		zap.String("model", c.cfg.Model),
		zap.Int("history", len(history)),
		zap.Int("final_len", len(req.Final)))

	resp, err := chat.SendMessage(ctx, genai.Part{Text: req.Final})
	if err != nil {
		c.log.Debug("send failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return "", classifyAPIError(fmt.Errorf("gemini: send message: %w", err))
	}

	text := resp.Text()
	if text == "" {
		return "", errNoCandidates
	}
	c.log.Debug("reply received", zap.Duration("elapsed", time.Since(start)), zap.Int("reply_len", len(text)))
	return text, nil
}

func generationConfig(p conversation.GenerationParams) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(p.Temperature),
		TopP:            genai.Ptr(p.TopP),
		TopK:            genai.Ptr(p.TopK),
		MaxOutputTokens: p.MaxOutputTokens,
	}
}

func toGenAIRole(r conversation.Role) genai.Role {
	if r == conversation.RoleUser {
		return genai.RoleUser
	}
	return genai.RoleModel
}

// classifyAPIError tags credential rejections using the structured status the
// API returns. Other failures are left for conversation.Classify.
func classifyAPIError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	if isCredentialFailure(apiErr) {
		return conversation.Wrap(conversation.CredentialError, err)
	}
	return err
}

func isCredentialFailure(e genai.APIError) bool {
	switch e.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	switch e.Status {
	case "UNAUTHENTICATED", "PERMISSION_DENIED":
		return true
	}
	for _, detail := range e.Details {
		if reason, ok := detail["reason"].(string); ok && reason == "API_KEY_INVALID" {
			return true
		}
	}
	return false
}
