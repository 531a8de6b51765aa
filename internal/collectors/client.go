package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/streamlens/streamlens/internal/cache"
	"github.com/streamlens/streamlens/internal/domain/collect"
)

const defaultTimeout = 30 * time.Second

// Config carries the knobs every collector shares. Base URLs are
// overridable so tests can point at httptest servers.
type Config struct {
	TwitchAuthURL string        `mapstructure:"twitch_auth_url"`
	TwitchAPIURL  string        `mapstructure:"twitch_api_url"`
	TwitterAPIURL string        `mapstructure:"twitter_api_url"`
	YouTubeAPIURL string        `mapstructure:"youtube_api_url"`
	RedditAuthURL string        `mapstructure:"reddit_auth_url"`
	RedditAPIURL  string        `mapstructure:"reddit_api_url"`
	ResponseTTL   time.Duration `mapstructure:"response_ttl"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	AnalysisTTL   time.Duration `mapstructure:"analysis_ttl"`
	MaxPages      int           `mapstructure:"max_pages"`
	UserAgent     string        `mapstructure:"user_agent"`
}

func DefaultConfig() Config {
	return Config{
		TwitchAuthURL: "https://id.twitch.tv",
		TwitchAPIURL:  "https://api.twitch.tv",
		TwitterAPIURL: "https://api.twitter.com",
		YouTubeAPIURL: "https://www.googleapis.com",
		RedditAuthURL: "https://www.reddit.com",
		RedditAPIURL:  "https://oauth.reddit.com",
		ResponseTTL:   30 * time.Second,
		TokenTTL:      30 * time.Minute,
		AnalysisTTL:   10 * time.Minute,
		MaxPages:      3,
		UserAgent:     "streamlens/1.0",
	}
}

// apiClient wraps HTTP access with failure classification and the
// shared response cache.
type apiClient struct {
	httpc *http.Client
	cache *cache.Cache
	ua    string
}

func newAPIClient(httpc *http.Client, c *cache.Cache, userAgent string) *apiClient {
	if httpc == nil {
		httpc = &http.Client{Timeout: defaultTimeout}
	}
	return &apiClient{httpc: httpc, cache: c, ua: userAgent}
}

// classify maps an HTTP status into the shared failure taxonomy.
func classify(status int, body []byte) *collect.Failure {
	reason := fmt.Sprintf("upstream status %d", status)
	if len(body) > 0 && len(body) <= 256 {
		reason = fmt.Sprintf("upstream status %d: %s", status, body)
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return collect.Fail(collect.KindAuthInvalid, reason, nil)
	case status == http.StatusNotFound:
		return collect.Fail(collect.KindEntityNotFound, reason, nil)
	case status == http.StatusTooManyRequests:
		return collect.Fail(collect.KindRateLimited, reason, nil)
	default:
		return collect.Fail(collect.KindTransient, reason, nil)
	}
}

// doJSON executes the request and decodes a 2xx JSON body into out.
// Network errors are transient; everything else goes through classify.
func (a *apiClient) doJSON(ctx context.Context, req *http.Request, out any) error {
	req = req.WithContext(ctx)
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", a.ua)
	}

	resp, err := a.httpc.Do(req)
	if err != nil {
		return collect.Fail(collect.KindTransient, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return collect.Fail(collect.KindTransient, "read body", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classify(resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return collect.Fail(collect.KindTransient, "decode body", err)
	}
	return nil
}

// cachedJSON coalesces identical GETs across overlapping jobs and
// reuses responses within ttl so duplicate polls do not double-charge
// the platform quota.
func (a *apiClient) cachedJSON(ctx context.Context, fp string, ttl time.Duration, build func() (*http.Request, error), out any) error {
	raw, err := a.cache.GetOrCompute(ctx, fp, ttl, func(ctx context.Context) (any, error) {
		req, err := build()
		if err != nil {
			return nil, collect.Fail(collect.KindTransient, "build request", err)
		}
		var buf json.RawMessage
		if err := a.doJSON(ctx, req, &buf); err != nil {
			return nil, err
		}
		return buf, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw.(json.RawMessage), out)
}
