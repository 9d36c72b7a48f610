package firehose

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/yungbote/feedquest-backend/internal/logger"
)

// Handler receives each decoded commit event. It must not block longer than
// it takes to hand the event off; backpressure belongs to the dispatcher.
type Handler func(ctx context.Context, ev *Event)

// Config selects what the jetstream subscription asks for.
type Config struct {
	Endpoint          string   `yaml:"endpoint"`
	WantedCollections []string `yaml:"wanted_collections"`
	WantedDIDs        []string `yaml:"wanted_dids"`
	Cursor            int64    `yaml:"cursor"`
}

// Consumer maintains a jetstream websocket subscription and forwards commit
// events to a handler. Reconnects with backoff until the context ends.
type Consumer struct {
	cfg    Config
	log    *logger.Logger
	cursor atomic.Int64
}

func NewConsumer(cfg Config, log *logger.Logger) (*Consumer, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("missing jetstream endpoint")
	}
	c := &Consumer{
		cfg: cfg,
		log: log.With("component", "FirehoseConsumer"),
	}
	c.cursor.Store(cfg.Cursor)
	return c, nil
}

// Run consumes until ctx is cancelled. Transport failures reconnect with
// exponential backoff from the last seen cursor.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.consumeOnce(ctx, handle)
		if err != nil && ctx.Err() == nil {
			wait := bo.NextBackOff()
			c.log.Warn("Jetstream connection lost, reconnecting", "error", err, "wait", wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bo.Reset()
	}
}

func (c *Consumer) consumeOnce(ctx context.Context, handle Handler) error {
	u, err := c.subscribeURL()
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("dial jetstream: %w", err)
	}
	defer conn.Close()

	c.log.Info("Jetstream connected", "endpoint", c.cfg.Endpoint, "cursor", c.cursor.Load())

	// Unblock ReadMessage when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read frame: %w", err)
		}

		ev, err := DecodeEvent(data)
		if err != nil {
			c.log.Debug("Skipping undecodable frame", "error", err)
			continue
		}
		if ev.TimeUS > 0 {
			c.cursor.Store(ev.TimeUS)
		}
		if ev.Kind != KindCommit || ev.Commit == nil {
			continue
		}
		handle(ctx, ev)
	}
}

func (c *Consumer) subscribeURL() (string, error) {
	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	for _, col := range c.cfg.WantedCollections {
		q.Add("wantedCollections", col)
	}
	for _, did := range c.cfg.WantedDIDs {
		q.Add("wantedDids", did)
	}
	if cur := c.cursor.Load(); cur > 0 {
		q.Set("cursor", strconv.FormatInt(cur, 10))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
