package collectors

import (
	"context"
	"fmt"
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

// Twitter polls the v2 API for a user's recent tweets and normalizes
// their public metrics, engagement rate, and text sentiment.
type Twitter struct {
	api         *apiClient
	apiURL      string
	ttl         time.Duration
	analysisTTL time.Duration
	maxPages    int
}

func NewTwitter(cfg Config, httpc *http.Client, c *cache.Cache) *Twitter {
	pages := cfg.MaxPages
	if pages <= 0 {
		pages = 1
	}
	return &Twitter{
		api:         newAPIClient(httpc, c, cfg.UserAgent),
		apiURL:      cfg.TwitterAPIURL,
		ttl:         cfg.ResponseTTL,
		analysisTTL: cfg.AnalysisTTL,
		maxPages:    pages,
	}
}

type twitterUser struct {
	Data struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"data"`
	Errors []struct {
		Title string `json:"title"`
	} `json:"errors"`
}

type twitterTweets struct {
	Data []struct {
		ID            string    `json:"id"`
		Text          string    `json:"text"`
		CreatedAt     time.Time `json:"created_at"`
		PublicMetrics struct {
			ReplyCount      int `json:"reply_count"`
			RetweetCount    int `json:"retweet_count"`
			LikeCount       int `json:"like_count"`
			QuoteCount      int `json:"quote_count"`
			ImpressionCount int `json:"impression_count"`
		} `json:"public_metrics"`
	} `json:"data"`
	Meta struct {
		NextToken string `json:"next_token"`
	} `json:"meta"`
}

func (t *Twitter) Collect(ctx context.Context, cred collect.Credential, entity string) ([]record.Record, error) {
	username := strings.TrimPrefix(strings.TrimSpace(entity), "@")
	if username == "" {
		return nil, collect.Fail(collect.KindEntityNotFound, "empty username", nil)
	}
	bearer := cred.Get("bearer_token")

	var u twitterUser
	ufp := cache.Fingerprint("twitter.user", username)
	if err := t.api.cachedJSON(ctx, ufp, t.ttl, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, t.apiURL+"/2/users/by/username/"+url.PathEscape(username), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+bearer)
		return req, nil
	}, &u); err != nil {
		return nil, err
	}
	// v2 reports unknown users as 200 with an errors array.
	if u.Data.ID == "" {
		return nil, collect.Fail(collect.KindEntityNotFound, fmt.Sprintf("user %q not found", username), nil)
	}

	var recs []record.Record
	now := time.Now().UTC()
	pageToken := ""
	for page := 0; page < t.maxPages; page++ {
		q := url.Values{
			"max_results":  {"100"},
			"tweet.fields": {"created_at,public_metrics,text"},
		}
		if pageToken != "" {
			q.Set("pagination_token", pageToken)
		}

		var tw twitterTweets
		tfp := cache.Fingerprint("twitter.tweets", u.Data.ID, pageToken)
		if err := t.api.cachedJSON(ctx, tfp, t.ttl, func() (*http.Request, error) {
			req, err := http.NewRequest(http.MethodGet, t.apiURL+"/2/users/"+u.Data.ID+"/tweets?"+q.Encode(), nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Authorization", "Bearer "+bearer)
			return req, nil
		}, &tw); err != nil {
			return nil, err
		}

		for _, tweet := range tw.Data {
			m := tweet.PublicMetrics
			labels := map[string]string{"tweet_id": tweet.ID, "created_at": tweet.CreatedAt.Format(time.RFC3339)}

			recs = append(recs,
				record.Record{Platform: job.PlatformTwitter, Entity: username, Timestamp: now, Metric: record.MetricLikeCount, Value: float64(m.LikeCount), Labels: labels},
				record.Record{Platform: job.PlatformTwitter, Entity: username, Timestamp: now, Metric: record.MetricRetweetCount, Value: float64(m.RetweetCount), Labels: labels},
				record.Record{Platform: job.PlatformTwitter, Entity: username, Timestamp: now, Metric: record.MetricReplyCount, Value: float64(m.ReplyCount), Labels: labels},
				record.Record{Platform: job.PlatformTwitter, Entity: username, Timestamp: now, Metric: record.MetricImpressions, Value: float64(m.ImpressionCount), Labels: labels},
				record.Record{
					Platform: job.PlatformTwitter, Entity: username, Timestamp: now,
					Metric: record.MetricEngagementRate,
					Value:  analytics.TwitterEngagement(m.LikeCount, m.RetweetCount, m.ReplyCount, m.ImpressionCount),
					Labels: labels,
				},
			)

			if s, err := t.sentiment(ctx, tweet.Text); err == nil {
				recs = append(recs, record.Record{
					Platform: job.PlatformTwitter, Entity: username, Timestamp: now,
					Metric: record.MetricSentiment, Value: s.Compound, Labels: labels,
				})
			}
		}

		pageToken = tw.Meta.NextToken
		if pageToken == "" {
			break
		}
	}

	return recs, nil
}

// sentiment routes the analyzer through the cache: identical texts
// hash to one fingerprint and one computation.
func (t *Twitter) sentiment(ctx context.Context, text string) (analytics.Scores, error) {
	fp := cache.Fingerprint("sentiment", text)
	raw, err := t.api.cache.GetOrCompute(ctx, fp, t.analysisTTL, func(context.Context) (any, error) {
		return analytics.Sentiment(text), nil
	})
	if err != nil {
		return analytics.Scores{}, err
	}
	return raw.(analytics.Scores), nil
}
