package collectors

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/streamlens/streamlens/internal/cache"
	"github.com/streamlens/streamlens/internal/domain/collect"
	"github.com/streamlens/streamlens/internal/domain/job"
	"github.com/streamlens/streamlens/internal/domain/record"
)

// Twitch polls Helix for stream state of one channel. App access
// tokens are minted via client credentials and cached by credential
// fingerprint so repeat polls do not re-authenticate.
type Twitch struct {
	api     *apiClient
	authURL string
	apiURL  string
	ttl     time.Duration
	tokTTL  time.Duration
}

func NewTwitch(cfg Config, httpc *http.Client, c *cache.Cache) *Twitch {
	return &Twitch{
		api:     newAPIClient(httpc, c, cfg.UserAgent),
		authURL: cfg.TwitchAuthURL,
		apiURL:  cfg.TwitchAPIURL,
		ttl:     cfg.ResponseTTL,
		tokTTL:  cfg.TokenTTL,
	}
}

type twitchToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type twitchStreams struct {
	Data []struct {
		UserID      string    `json:"user_id"`
		UserName    string    `json:"user_name"`
		GameName    string    `json:"game_name"`
		Title       string    `json:"title"`
		ViewerCount int       `json:"viewer_count"`
		StartedAt   time.Time `json:"started_at"`
	} `json:"data"`
}

type twitchUsers struct {
	Data []struct {
		ID          string `json:"id"`
		Login       string `json:"login"`
		DisplayName string `json:"display_name"`
	} `json:"data"`
}

func (t *Twitch) token(ctx context.Context, cred collect.Credential) (string, error) {
	fp := cache.Fingerprint("twitch.token", cred.Fingerprint())
	raw, err := t.api.cache.GetOrCompute(ctx, fp, t.tokTTL, func(ctx context.Context) (any, error) {
		form := url.Values{
			"client_id":     {cred.Get("client_id")},
			"client_secret": {cred.Get("client_secret")},
			"grant_type":    {"client_credentials"},
		}
		req, err := http.NewRequest(http.MethodPost, t.authURL+"/oauth2/token", strings.NewReader(form.Encode()))
		if err != nil {
			return nil, collect.Fail(collect.KindTransient, "build token request", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		var tok twitchToken
		if err := t.api.doJSON(ctx, req, &tok); err != nil {
			return nil, err
		}
		if tok.AccessToken == "" {
			return nil, collect.Fail(collect.KindAuthInvalid, "empty access token", nil)
		}
		return tok.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return raw.(string), nil
}

func (t *Twitch) Collect(ctx context.Context, cred collect.Credential, entity string) ([]record.Record, error) {
	login := strings.ToLower(strings.TrimSpace(entity))
	if login == "" {
		return nil, collect.Fail(collect.KindEntityNotFound, "empty channel login", nil)
	}

	tok, err := t.token(ctx, cred)
	if err != nil {
		return nil, err
	}
	auth := func(req *http.Request) *http.Request {
		req.Header.Set("Client-Id", cred.Get("client_id"))
		req.Header.Set("Authorization", "Bearer "+tok)
		return req
	}

	// The channel must exist even when offline; /streams returns an
	// empty list for both "offline" and "no such user".
	var users twitchUsers
	ufp := cache.Fingerprint("twitch.users", login)
	if err := t.api.cachedJSON(ctx, ufp, t.ttl, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, t.apiURL+"/helix/users?login="+url.QueryEscape(login), nil)
		if err != nil {
			return nil, err
		}
		return auth(req), nil
	}, &users); err != nil {
		return nil, err
	}
	if len(users.Data) == 0 {
		return nil, collect.Fail(collect.KindEntityNotFound, fmt.Sprintf("channel %q not found", login), nil)
	}

	var streams twitchStreams
	sfp := cache.Fingerprint("twitch.streams", login)
	if err := t.api.cachedJSON(ctx, sfp, t.ttl, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, t.apiURL+"/helix/streams?user_login="+url.QueryEscape(login), nil)
		if err != nil {
			return nil, err
		}
		return auth(req), nil
	}, &streams); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	labels := map[string]string{"channel": users.Data[0].DisplayName}
	live := 0.0
	viewers := 0.0
	if len(streams.Data) > 0 {
		s := streams.Data[0]
		live = 1
		viewers = float64(s.ViewerCount)
		labels["game"] = s.GameName
		labels["title"] = s.Title
	}

	return []record.Record{
		{Platform: job.PlatformTwitch, Entity: login, Timestamp: now, Metric: record.MetricLive, Value: live, Labels: labels},
		{Platform: job.PlatformTwitch, Entity: login, Timestamp: now, Metric: record.MetricViewerCount, Value: viewers, Labels: labels},
	}, nil
}
