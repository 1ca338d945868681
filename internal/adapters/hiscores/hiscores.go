// Package hiscores looks up player skill experience from an external
// hiscores service. Lookups are best-effort: any failure degrades to
// (0, false) so progress calculation can skip the update rather than
// fail the event.
package hiscores

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/clanhall/bingo/pkg/logger"
	"github.com/clanhall/bingo/pkg/metrics"
)

const defaultTimeout = 5 * time.Second

// SkillLookup resolves a player's experience in a skill.
type SkillLookup interface {
	// CurrentXP returns the player's current experience in skill.
	// ok is false when the lookup failed or the player is unknown.
	CurrentXP(ctx context.Context, player, skill string) (xp int64, ok bool)

	// HistoricalXPAt returns the player's experience in skill as of t.
	HistoricalXPAt(ctx context.Context, player, skill string, t time.Time) (xp int64, ok bool)
}

// Client is an HTTP-backed SkillLookup.
type Client struct {
	baseURL string
	http    *http.Client
	logger  logger.Logger
}

// NewClient creates a hiscores client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger.Get().Named("hiscores"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type xpResponse struct {
	XP int64 `json:"xp"`
}

// CurrentXP fetches the player's live experience in skill.
func (c *Client) CurrentXP(ctx context.Context, player, skill string) (int64, bool) {
	return c.fetch(ctx, player, skill, nil)
}

// HistoricalXPAt fetches the player's experience in skill as of t.
func (c *Client) HistoricalXPAt(ctx context.Context, player, skill string, t time.Time) (int64, bool) {
	return c.fetch(ctx, player, skill, &t)
}

func (c *Client) fetch(ctx context.Context, player, skill string, at *time.Time) (int64, bool) {
	q := url.Values{}
	q.Set("player", player)
	q.Set("skill", skill)
	if at != nil {
		q.Set("at", at.UTC().Format(time.RFC3339))
	}
	endpoint := fmt.Sprintf("%s/xp?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.fail(ctx, player, skill, err)
		return 0, false
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.fail(ctx, player, skill, err)
		return 0, false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		c.fail(ctx, player, skill, fmt.Errorf("unexpected status %d", resp.StatusCode))
		return 0, false
	}

	var body xpResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.fail(ctx, player, skill, err)
		return 0, false
	}
	return body.XP, true
}

func (c *Client) fail(ctx context.Context, player, skill string, err error) {
	metrics.RecordSkillLookupFailure()
	c.logger.Warn(ctx, "skill lookup failed",
		logger.String("player", player),
		logger.String("skill", skill),
		logger.Error(err),
	)
}
