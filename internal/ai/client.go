// Package ai is the maintenance advisor backed by Gemini models: diagnosis text,
// invoice extraction and speech synthesis.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/apperr"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/metrics"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"google.golang.org/genai"
)

// Generator is the subset of the genai Models service the advisor uses.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config selects models and bounds each call.
type Config struct {
	TextModel       string
	SpeechModel     string
	Voice           string
	Language        string
	Timeout         time.Duration
	BreakerFailures int
	BreakerTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.TextModel == "" {
		c.TextModel = "gemini-2.5-flash"
	}
	if c.SpeechModel == "" {
		c.SpeechModel = "gemini-2.5-flash-preview-tts"
	}
	if c.Voice == "" {
		c.Voice = "Kore"
	}
	if c.Language == "" {
		c.Language = "fr"
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.BreakerFailures <= 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = 30 * time.Second
	}
	return c
}

// Client runs advisor flows through a circuit breaker with a per-call timeout.
type Client struct {
	gen     Generator
	cfg     Config
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Collector
}

// NewClient wraps gen. collector may be nil.
func NewClient(gen Generator, cfg Config, collector *metrics.Collector) *Client {
	cfg = cfg.withDefaults()
	threshold := uint32(cfg.BreakerFailures)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gemini",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(log.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("AI circuit breaker state change")
		},
	})

	return &Client{gen: gen, cfg: cfg, breaker: breaker, metrics: collector}
}

// NewGeminiClient creates a Client talking to the Gemini API with apiKey.
func NewGeminiClient(ctx context.Context, apiKey string, cfg Config, collector *metrics.Collector) (*Client, error) {
	if apiKey == "" {
		return nil, apperr.New(apperr.CodeConfigMissing, "AI API key is not configured", nil)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return NewClient(client.Models, cfg, collector), nil
}

// Language returns the language answers are requested in.
func (c *Client) Language() string {
	return c.cfg.Language
}

func (c *Client) generate(ctx context.Context, flow, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.gen.GenerateContent(ctx, model, contents, config)
	})
	elapsed := time.Since(start)

	if err != nil {
		outcome, appErr := classify(flow, err)
		c.metrics.ObserveAI(flow, outcome, elapsed)
		log.WithError(err).WithFields(log.Fields{
			"flow":    flow,
			"model":   model,
			"outcome": outcome,
			"elapsed": elapsed,
		}).Error("AI call failed")
		return nil, appErr
	}

	c.metrics.ObserveAI(flow, "ok", elapsed)
	resp, _ := result.(*genai.GenerateContentResponse)
	if resp == nil {
		return nil, apperr.New(apperr.CodeAIServiceUnavailable, fmt.Sprintf("%s: empty response", flow), nil)
	}
	return resp, nil
}

func classify(flow string, err error) (string, *apperr.Error) {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "rejected", apperr.New(apperr.CodeAIServiceUnavailable, "AI advisor temporarily unavailable", err)
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout", apperr.New(apperr.CodeAITimeout, fmt.Sprintf("%s timed out", flow), err)
	default:
		return "error", apperr.New(apperr.CodeAIServiceUnavailable, fmt.Sprintf("%s failed", flow), err)
	}
}
