// Package bsky holds the profile-lookup client used to bootstrap an unseen
// actor: display name plus a seed experience derived from the profile's
// follower count.
package bsky

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/yungbote/feedquest-backend/internal/logger"
	"github.com/yungbote/feedquest-backend/internal/utils"
)

// Profile is what actor bootstrap needs from the profile service.
type Profile struct {
	DID            string
	Handle         string
	DisplayName    string
	SeedExperience int
}

// ProfileProvider looks up an actor's public profile. Called at most once
// per unseen identity.
type ProfileProvider interface {
	GetProfile(ctx context.Context, did string) (Profile, error)
}

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

func ConfigFromEnv(log *logger.Logger) Config {
	timeoutSec := utils.GetEnvAsInt("BSKY_TIMEOUT_SECONDS", 15, log)
	maxRetries := utils.GetEnvAsInt("BSKY_MAX_RETRIES", 3, log)

	return Config{
		BaseURL:    strings.TrimSpace(os.Getenv("BSKY_APPVIEW_URL")),
		Timeout:    time.Duration(timeoutSec) * time.Second,
		MaxRetries: maxRetries,
	}
}

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
		cfg.BaseURL = "https://public.api.bsky.app"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &Client{
		cfg:  cfg,
		log:  log.With("service", "BskyProfileClient"),
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type profileResponse struct {
	DID            string `json:"did"`
	Handle         string `json:"handle"`
	DisplayName    string `json:"displayName"`
	FollowersCount int    `json:"followersCount"`
}

func (c *Client) GetProfile(ctx context.Context, did string) (Profile, error) {
	endpoint := c.cfg.BaseURL + "/xrpc/app.bsky.actor.getProfile?actor=" + url.QueryEscape(did)

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.cfg.MaxRetries)), ctx)

	var out profileResponse
	err := backoff.Retry(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

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
			err := fmt.Errorf("getProfile %s: status %d", did, resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(err)
			}
			return err
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode profile: %w", err))
		}
		return nil
	}, bo)
	if err != nil {
		return Profile{}, err
	}

	name := strings.TrimSpace(out.DisplayName)
	if name == "" {
		name = out.Handle
	}

	return Profile{
		DID:            did,
		Handle:         out.Handle,
		DisplayName:    name,
		SeedExperience: seedExperience(out.FollowersCount),
	}, nil
}

// seedExperience converts a follower count into starting XP: one point per
// ten followers, capped at the level-50 neighborhood so established accounts
// don't spawn at the cap.
func seedExperience(followers int) int {
	if followers <= 0 {
		return 0
	}
	seed := followers / 10
	if seed > 5000 {
		seed = 5000
	}
	return seed
}
