// Package llm talks to an OpenAI-compatible chat completions endpoint and
// implements the relevance and rewrite oracles on top of it.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	ErrNoChoices      = errors.New("no choices in completion response")
	ErrUnknownVerdict = errors.New("unrecognised relevance verdict")
	ErrShortRewrite   = errors.New("rewrite too short")
)

// Config for the chat client.
type Config struct {
	APIKey      string        // if empty, falls back to env OPENAI_API_KEY
	BaseURL     string        // default https://api.openai.com/v1
	Model       string        // e.g. "gpt-4o-mini"
	Temperature float32       // 0..2
	Timeout     time.Duration // http client timeout

	// Rules are hard constraints the relevance check must enforce,
	// e.g. "The job must not require Java as a primary skill."
	Rules []string
	// MaxDescription caps the description sent for relevance checks, in characters.
	MaxDescription int
	// MinTailored rejects tailored résumés shorter than this many characters.
	MinTailored int
}

// Client is an OpenAI-compatible chat completions client.
type Client struct {
	cfg     Config
	http    *http.Client
	log     *slog.Logger
	verdict *jsonschema.Schema
}

// NewClient applies defaults and compiles the verdict schema.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxDescription <= 0 {
		cfg.MaxDescription = 15000
	}
	if cfg.MinTailored <= 0 {
		cfg.MinTailored = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := compileSchema("verdict.json", verdictSchema())
	if err != nil {
		return nil, err
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     logger,
		verdict: schema,
	}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// complete sends one chat request and returns the first choice's content.
// op names the log events, e.g. "relevance" gives llm.relevance.start.
func (c *Client) complete(ctx context.Context, op string, msgs []message, jsonMode bool) (string, error) {
	rid := uuid.New().String()
	start := time.Now()
	ev := "llm." + op

	size := 0
	for _, m := range msgs {
		size += len(m.Content)
	}
	c.log.Info(ev+".start", "req_id", rid, "model", c.cfg.Model, "prompt_len", size)

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"messages":    msgs,
	}
	if jsonMode {
		body["response_format"] = map[string]any{"type": "json_object"}
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.log.Error(ev+".http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error(ev+".decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error(ev+".no_choices", "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
		return "", ErrNoChoices
	}

	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	c.log.Info(ev+".ok",
		"req_id", rid, "content_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.log.Warn("llm response body close error", "error", err)
		}
	}(resp.Body)

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("llm status %d: %s", resp.StatusCode, buf.String())
	}
	return buf.Bytes(), nil
}
