package collectors

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/streamlens/streamlens/internal/analytics"
	"github.com/streamlens/streamlens/internal/cache"
	"github.com/streamlens/streamlens/internal/domain/collect"
	"github.com/streamlens/streamlens/internal/domain/job"
	"github.com/streamlens/streamlens/internal/domain/record"
)

const redditCommentWeight = 2.0

// Reddit polls a subreddit's hot listing via the OAuth API. Script
// tokens come from client-credentials and are cached like Twitch's.
type Reddit struct {
	api         *apiClient
	authURL     string
	apiURL      string
	ttl         time.Duration
	tokTTL      time.Duration
	analysisTTL time.Duration
}

func NewReddit(cfg Config, httpc *http.Client, c *cache.Cache) *Reddit {
	return &Reddit{
		api:         newAPIClient(httpc, c, cfg.UserAgent),
		authURL:     cfg.RedditAuthURL,
		apiURL:      cfg.RedditAPIURL,
		ttl:         cfg.ResponseTTL,
		tokTTL:      cfg.TokenTTL,
		analysisTTL: cfg.AnalysisTTL,
	}
}

type redditToken struct {
	AccessToken string `json:"access_token"`
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				ID          string  `json:"id"`
				Title       string  `json:"title"`
				Score       int     `json:"score"`
				NumComments int     `json:"num_comments"`
				UpvoteRatio float64 `json:"upvote_ratio"`
				CreatedUTC  float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (r *Reddit) token(ctx context.Context, cred collect.Credential) (string, error) {
	fp := cache.Fingerprint("reddit.token", cred.Fingerprint())
	raw, err := r.api.cache.GetOrCompute(ctx, fp, r.tokTTL, func(ctx context.Context) (any, error) {
		form := url.Values{"grant_type": {"client_credentials"}}
		req, err := http.NewRequest(http.MethodPost, r.authURL+"/api/v1/access_token", strings.NewReader(form.Encode()))
		if err != nil {
			return nil, collect.Fail(collect.KindTransient, "build token request", err)
		}
		req.SetBasicAuth(cred.Get("client_id"), cred.Get("client_secret"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("User-Agent", cred.Get("user_agent"))

		var tok redditToken
		if err := r.api.doJSON(ctx, req, &tok); err != nil {
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

func (r *Reddit) Collect(ctx context.Context, cred collect.Credential, entity string) ([]record.Record, error) {
	sub := strings.TrimPrefix(strings.TrimSpace(entity), "r/")
	if sub == "" {
		return nil, collect.Fail(collect.KindEntityNotFound, "empty subreddit", nil)
	}

	tok, err := r.token(ctx, cred)
	if err != nil {
		return nil, err
	}

	var listing redditListing
	fp := cache.Fingerprint("reddit.hot", sub)
	if err := r.api.cachedJSON(ctx, fp, r.ttl, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, r.apiURL+"/r/"+url.PathEscape(sub)+"/hot?limit=25", nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
		req.Header.Set("User-Agent", cred.Get("user_agent"))
		return req, nil
	}, &listing); err != nil {
		return nil, err
	}
	// A quiet subreddit returns an empty page; a missing one 404s and
	// is classified on the transport path. Nothing to record here.
	if len(listing.Data.Children) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	var recs []record.Record
	for _, child := range listing.Data.Children {
		p := child.Data
		labels := map[string]string{"post_id": p.ID, "title": p.Title}

		recs = append(recs,
			record.Record{Platform: job.PlatformReddit, Entity: sub, Timestamp: now, Metric: record.MetricPostScore, Value: float64(p.Score), Labels: labels},
			record.Record{Platform: job.PlatformReddit, Entity: sub, Timestamp: now, Metric: record.MetricCommentCount, Value: float64(p.NumComments), Labels: labels},
			record.Record{Platform: job.PlatformReddit, Entity: sub, Timestamp: now, Metric: record.MetricUpvoteRatio, Value: p.UpvoteRatio, Labels: labels},
			record.Record{
				Platform: job.PlatformReddit, Entity: sub, Timestamp: now,
				Metric: record.MetricEngagementRate,
				Value:  analytics.RedditEngagement(p.Score, p.NumComments, redditCommentWeight),
				Labels: labels,
			},
		)

		sfp := cache.Fingerprint("sentiment", p.Title)
		if raw, err := r.api.cache.GetOrCompute(ctx, sfp, r.analysisTTL, func(context.Context) (any, error) {
			return analytics.Sentiment(p.Title), nil
		}); err == nil {
			recs = append(recs, record.Record{
				Platform: job.PlatformReddit, Entity: sub, Timestamp: now,
				Metric: record.MetricSentiment, Value: raw.(analytics.Scores).Compound, Labels: labels,
			})
		}
	}
	return recs, nil
}
