package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/yungbote/chartmotion-backend/internal/observability"
	"github.com/yungbote/chartmotion-backend/internal/platform/envutil"
	"github.com/yungbote/chartmotion-backend/internal/platform/logger"
)

type Config struct {
	APIKey string
	Model  string
	RPS    float64
}

func ConfigFromEnv() Config {
	return Config{
		APIKey: envutil.String("GEMINI_API_KEY", ""),
		Model:  envutil.String("GEMINI_MODEL", "gemini-2.5-flash"),
		RPS:    envutil.Float("GEMINI_RPS", 1),
	}
}

// Client wraps the genai SDK for single-shot text generation. No retries.
type Client struct {
	log     *logger.Logger
	cli     *genai.Client
	model   string
	limiter *rate.Limiter
}

func NewClient(ctx context.Context, log *logger.Logger, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	c := &Client{log: log.With("service", "GeminiClient"), cli: cli, model: cfg.Model}
	if cfg.RPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), 1)
	}
	return c, nil
}

func (c *Client) Name() string         { return "gemini" }
func (c *Client) DefaultModel() string { return c.model }

func (c *Client) GenerateText(ctx context.Context, system, user, model string) (string, error) {
	if strings.TrimSpace(model) == "" {
		model = c.model
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	cfg := &genai.GenerateContentConfig{}
	if strings.TrimSpace(system) != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	start := time.Now()
	resp, err := c.cli.Models.GenerateContent(ctx, model, []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: user}}}}, cfg)
	status := "ok"
	if err != nil {
		status = "error"
	}
	if metrics := observability.Current(); metrics != nil {
		metrics.ObserveCodegenRequest(c.Name(), model, status, time.Since(start))
	}
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	var text string
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			text += part.Text
		}
	}
	if strings.TrimSpace(text) == "" {
		c.log.Warn("Gemini returned empty text", "model", model)
		return "", fmt.Errorf("gemini returned no text")
	}
	return text, nil
}
