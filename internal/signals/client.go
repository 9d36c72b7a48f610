package signals

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/yungbote/feedquest-backend/internal/alignment"
	"github.com/yungbote/feedquest-backend/internal/logger"
	"github.com/yungbote/feedquest-backend/internal/utils"
)

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

func ConfigFromEnv(log *logger.Logger) Config {
	timeoutSec := utils.GetEnvAsInt("SIGNALS_TIMEOUT_SECONDS", 10, log)
	maxRetries := utils.GetEnvAsInt("SIGNALS_MAX_RETRIES", 2, log)

	return Config{
		BaseURL:    strings.TrimSpace(os.Getenv("SIGNALS_BASE_URL")),
		Timeout:    time.Duration(timeoutSec) * time.Second,
		MaxRetries: maxRetries,
	}
}

// Client talks to the text-signal service over HTTP. It implements both
// SentimentProvider and SpellcheckProvider.
type Client struct {
	cfg  Config
	log  *logger.Logger
	http *http.Client
}

func NewFromEnv(log *logger.Logger) (*Client, error) {
	return New(log, ConfigFromEnv(log))
}

func New(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("missing SIGNALS_BASE_URL")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &Client{
		cfg:  cfg,
		log:  log.With("service", "SignalsClient"),
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type sentimentResponse struct {
	Polarity string  `json:"polarity"`
	Score    float64 `json:"score"`
}

func (c *Client) Analyze(ctx context.Context, text string) (alignment.Sentiment, error) {
	var out sentimentResponse
	if err := c.post(ctx, "/v1/sentiment", map[string]string{"text": text}, &out); err != nil {
		return alignment.Sentiment{}, err
	}

	s := alignment.Sentiment{Score: out.Score}
	switch strings.ToLower(out.Polarity) {
	case "positive":
		s.Polarity = alignment.Positive
	case "negative":
		s.Polarity = alignment.Negative
	default:
		return alignment.Sentiment{}, fmt.Errorf("unknown polarity %q", out.Polarity)
	}
	if s.Score < 0 || s.Score > 1 {
		return alignment.Sentiment{}, fmt.Errorf("score %v out of range", s.Score)
	}
	return s, nil
}

type spellcheckResponse struct {
	Mistakes int `json:"mistakes"`
}

func (c *Client) Check(ctx context.Context, text string) (int, error) {
	var out spellcheckResponse
	if err := c.post(ctx, "/v1/spellcheck", map[string]string{"text": text}, &out); err != nil {
		return 0, err
	}
	if out.Mistakes < 0 {
		return 0, fmt.Errorf("negative mistake count %d", out.Mistakes)
	}
	return out.Mistakes, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.cfg.MaxRetries)), ctx)

	return backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("signals %s: status %d", path, resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(err)
			}
			return err
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}, bo)
}
