package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"replypilot/internal/generate"
)

// Client wraps the Gemini API client behind the generation capability
// interface.
type Client struct {
	client     *genai.Client
	model      *genai.GenerativeModel
	logger     *zap.Logger
	modelName  string
	maxRetries int
	retryDelay time.Duration
}

// Config for Gemini client
type Config struct {
	APIKey     string
	ModelName  string // Default: "gemini-2.0-flash-exp"
	MaxRetries int
	RetryDelay time.Duration
}

// NewClient creates a new Gemini client
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	if cfg.ModelName == "" {
		cfg.ModelName = "gemini-2.0-flash-exp"
	}

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.ModelName)

	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SystemInstruction)},
	}

	model.ResponseMIMEType = "application/json"

	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr[float32](0.9), // Higher for natural-sounding replies
		TopP:            genai.Ptr[float32](0.95),
		TopK:            genai.Ptr[int32](40),
		MaxOutputTokens: genai.Ptr[int32](300),
	}

	logger.Info("Gemini client initialized",
		zap.String("model", cfg.ModelName),
		zap.Int("max_retries", cfg.MaxRetries))

	return &Client{
		client:     client,
		model:      model,
		logger:     logger,
		modelName:  cfg.ModelName,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

// Close closes the Gemini client
func (c *Client) Close() error {
	return c.client.Close()
}

// Generate drafts a reply, or refines a prior one when the request
// carries a continuation token.
func (c *Client) Generate(ctx context.Context, req generate.Request) (*generate.Result, error) {
	sess, err := decodeSession(req.ContinuationToken)
	if err != nil {
		return nil, &generate.PermanentError{Err: fmt.Errorf("invalid continuation token: %w", err)}
	}

	var prompt string
	if len(sess.Turns) == 0 {
		prompt = BuildPrompt(req)
	} else {
		prompt = BuildRefinePrompt(req.RefineHint)
	}

	chat := c.model.StartChat()
	chat.History = sess.history()

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying Gemini request",
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", c.maxRetries))
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return nil, &generate.TransientError{Err: ctx.Err()}
			}
		}

		resp, err := chat.SendMessage(ctx, genai.Text(prompt))
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, &generate.TransientError{Err: err}
			}
			lastErr = fmt.Errorf("gemini API error: %w", err)
			c.logger.Error("Gemini API error", zap.Error(err), zap.Int("attempt", attempt+1))
			continue
		}

		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			lastErr = fmt.Errorf("empty response from gemini")
			c.logger.Error("Empty response from Gemini", zap.Int("attempt", attempt+1))
			continue
		}

		textPart, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
		if !ok {
			lastErr = fmt.Errorf("unexpected response type from gemini")
			c.logger.Error("Unexpected response type", zap.Int("attempt", attempt+1))
			continue
		}

		reply, err := parseReply(string(textPart))
		if err != nil {
			lastErr = err
			c.logger.Error("Failed to parse JSON response",
				zap.Error(err),
				zap.String("response", string(textPart)),
				zap.Int("attempt", attempt+1))
			continue
		}

		sess.Turns = append(sess.Turns,
			turn{Role: "user", Text: prompt},
			turn{Role: "model", Text: string(textPart)},
		)
		token, err := encodeSession(sess)
		if err != nil {
			return nil, &generate.PermanentError{Err: fmt.Errorf("failed to encode continuation token: %w", err)}
		}

		c.logger.Debug("Reply generated",
			zap.Int("length", len(reply)),
			zap.Int("attempt", attempt+1))

		return &generate.Result{Text: reply, ContinuationToken: token}, nil
	}

	return nil, &generate.TransientError{Err: fmt.Errorf("failed after %d attempts: %w", c.maxRetries, lastErr)}
}

// parseReply extracts the comment text from the model's JSON response,
// stripping markdown code fences if present.
func parseReply(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)

	var parsed struct {
		Comment string `json:"comment"`
	}
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return "", fmt.Errorf("failed to parse gemini response: %w", err)
	}
	if strings.TrimSpace(parsed.Comment) == "" {
		return "", fmt.Errorf("gemini response has no comment text")
	}
	return strings.TrimSpace(parsed.Comment), nil
}
