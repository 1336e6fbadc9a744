package riot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"lol-stats-tracker/internal/config"
	"lol-stats-tracker/internal/constants"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/valyala/fasthttp"
)

// Client talks to the Riot Account-v1 and Match-v5 APIs for one api key.
// Every request takes a token from the shared limiter before going on the
// wire, so concurrent player windows share the application rate budget.
type Client struct {
	apiKey  string
	client  *fasthttp.Client
	limiter *Limiter
	logger  zerolog.Logger

	// baseURL overrides the routing-derived host; tests point it at a local
	// server. Empty in production.
	baseURL string

	rateLimitMu sync.RWMutex
	rateLimit   RateLimitInfo
}

// RateLimitInfo mirrors the application rate limit headers of the most
// recent response.
type RateLimitInfo struct {
	AppLimit  string    `json:"app_limit"`
	AppCount  string    `json:"app_count"`
	Remaining int       `json:"remaining"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewClient(cfg *config.Config, logger zerolog.Logger) *Client {
	return &Client{
		apiKey: cfg.RiotAPIKey,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         constants.ExternalAPITimeout,
			WriteTimeout:        constants.ExternalAPITimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		limiter: NewLimiter(constants.RateLimitTokens, constants.RateLimitWindow),
		logger:  logger,
	}
}

func (c *Client) GetRateLimitInfo() RateLimitInfo {
	c.rateLimitMu.RLock()
	defer c.rateLimitMu.RUnlock()
	info := c.rateLimit
	info.Remaining = c.limiter.Remaining()
	return info
}

func (c *Client) updateRateLimit(resp *fasthttp.Response) {
	c.rateLimitMu.Lock()
	defer c.rateLimitMu.Unlock()

	if limit := string(resp.Header.Peek("X-App-Rate-Limit")); limit != "" {
		c.rateLimit.AppLimit = limit
	}
	if count := string(resp.Header.Peek("X-App-Rate-Limit-Count")); count != "" {
		c.rateLimit.AppCount = count
	}
	c.rateLimit.UpdatedAt = time.Now()
}

func (c *Client) endpoint(routing string) string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return fmt.Sprintf("https://%s.api.riotgames.com", strings.ToLower(routing))
}

// GetAccountByRiotID resolves a "Name#TAG" handle into a stable puuid.
func (c *Client) GetAccountByRiotID(ctx context.Context, routing, name, tag string) (*Account, error) {
	u := fmt.Sprintf("%s/riot/account/v1/accounts/by-riot-id/%s/%s",
		c.endpoint(routing), url.PathEscape(name), url.PathEscape(tag))
	return doRequest[Account](ctx, c, u)
}

// ListMatchIDs returns the match ids for a puuid in [startTime, endTime),
// ordered oldest-to-newest so a window can be resumed from a committed
// prefix. Match-v5 itself returns newest first.
func (c *Client) ListMatchIDs(ctx context.Context, routing, puuid string, startTime, endTime int64, count int) ([]string, error) {
	if count > constants.MatchIDPageLimit {
		count = constants.MatchIDPageLimit
	}
	u := fmt.Sprintf("%s/lol/match/v5/matches/by-puuid/%s/ids?startTime=%d&endTime=%d&start=0&count=%d",
		c.endpoint(routing), url.PathEscape(puuid), startTime, endTime, count)

	ids, err := doRequest[[]string](ctx, c, u)
	if err != nil {
		return nil, err
	}

	ordered := slices.Clone(*ids)
	slices.Reverse(ordered)
	return ordered, nil
}

// GetMatch fetches the full Match-v5 payload for one match id.
func (c *Client) GetMatch(ctx context.Context, routing, matchID string) (*Match, error) {
	u := fmt.Sprintf("%s/lol/match/v5/matches/%s", c.endpoint(routing), url.PathEscape(matchID))
	return doRequest[Match](ctx, c, u)
}

func doRequest[T any](ctx context.Context, c *Client, url string) (*T, error) {
	backoff := retry.WithCappedDuration(constants.RetryMaxDelay, retry.NewExponential(constants.RetryBaseDelay))
	backoff = retry.WithMaxRetries(constants.MaxFetchAttempts-1, backoff)

	var result T
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := c.limiter.Acquire(ctx); err != nil {
			return err
		}

		status, body, retryAfter, err := c.get(ctx, url)
		if err != nil {
			c.logger.Debug().Err(err).Str("url", url).Msg("provider request failed")
			return retry.RetryableError(&TransientError{Err: err})
		}

		switch {
		case status == fasthttp.StatusOK:
			// fall through to decode
		case status == fasthttp.StatusTooManyRequests:
			c.logger.Warn().Dur("retry_after", retryAfter).Str("url", url).Msg("provider rate limit hit")
			if err := sleepCtx(ctx, retryAfter); err != nil {
				return err
			}
			return retry.RetryableError(&TransientError{Status: status, RetryAfter: retryAfter})
		case status >= 500:
			return retry.RetryableError(&TransientError{Status: status})
		default:
			return &PermanentError{Status: status}
		}

		if err := json.Unmarshal(body, &result); err != nil {
			return &PermanentError{Err: fmt.Errorf("malformed payload: %w", err)}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) get(ctx context.Context, url string) (status int, body []byte, retryAfter time.Duration, err error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("X-Riot-Token", c.apiKey)

	if deadline, ok := ctx.Deadline(); ok {
		err = c.client.DoDeadline(req, resp, deadline)
	} else {
		err = c.client.Do(req, resp)
	}
	if err != nil {
		return 0, nil, 0, err
	}

	c.updateRateLimit(resp)

	retryAfter = constants.DefaultRetryAfter
	if raw := string(resp.Header.Peek("Retry-After")); raw != "" {
		if secs, perr := strconv.Atoi(raw); perr == nil && secs > 0 {
			retryAfter = time.Duration(secs) * time.Second
		}
	}

	// Copy the body out before the response goes back to the pool.
	body = append([]byte(nil), resp.Body()...)
	return resp.StatusCode(), body, retryAfter, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
