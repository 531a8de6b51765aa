package collectors

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/streamlens/streamlens/internal/analytics"
	"github.com/streamlens/streamlens/internal/cache"
	"github.com/streamlens/streamlens/internal/domain/collect"
	"github.com/streamlens/streamlens/internal/domain/job"
	"github.com/streamlens/streamlens/internal/domain/record"
)

// YouTube polls the Data API v3 for a channel's recent uploads and
// their statistics. Entities may be a raw channel ID (UC...) or a
// handle/name, which is resolved through search.
type YouTube struct {
	api    *apiClient
	apiURL string
	ttl    time.Duration
}

func NewYouTube(cfg Config, httpc *http.Client, c *cache.Cache) *YouTube {
	return &YouTube{
		api:    newAPIClient(httpc, c, cfg.UserAgent),
		apiURL: cfg.YouTubeAPIURL,
		ttl:    cfg.ResponseTTL,
	}
}

type ytSearch struct {
	Items []struct {
		ID struct {
			ChannelID string `json:"channelId"`
			VideoID   string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			ChannelID string `json:"channelId"`
			Title     string `json:"title"`
		} `json:"snippet"`
	} `json:"items"`
}

type ytVideos struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string `json:"title"`
			PublishedAt string `json:"publishedAt"`
		} `json:"snippet"`
		Statistics struct {
			ViewCount    string `json:"viewCount"`
			LikeCount    string `json:"likeCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
	} `json:"items"`
}

func (y *YouTube) getCached(ctx context.Context, path string, q url.Values, out any) error {
	fp := cache.Fingerprint("youtube", path, q.Encode())
	return y.api.cachedJSON(ctx, fp, y.ttl, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, y.apiURL+path+"?"+q.Encode(), nil)
	}, out)
}

func (y *YouTube) channelID(ctx context.Context, key, entity string) (string, error) {
	if strings.HasPrefix(entity, "UC") && len(entity) == 24 {
		return entity, nil
	}
	var res ytSearch
	q := url.Values{
		"part":       {"snippet"},
		"q":          {entity},
		"type":       {"channel"},
		"maxResults": {"1"},
		"key":        {key},
	}
	if err := y.getCached(ctx, "/youtube/v3/search", q, &res); err != nil {
		return "", err
	}
	if len(res.Items) == 0 {
		return "", collect.Fail(collect.KindEntityNotFound, fmt.Sprintf("channel %q not found", entity), nil)
	}
	return res.Items[0].Snippet.ChannelID, nil
}

func (y *YouTube) Collect(ctx context.Context, cred collect.Credential, entity string) ([]record.Record, error) {
	entity = strings.TrimSpace(entity)
	if entity == "" {
		return nil, collect.Fail(collect.KindEntityNotFound, "empty channel", nil)
	}
	key := cred.Get("api_key")

	channelID, err := y.channelID(ctx, key, entity)
	if err != nil {
		return nil, err
	}

	var search ytSearch
	q := url.Values{
		"part":       {"snippet"},
		"channelId":  {channelID},
		"order":      {"date"},
		"type":       {"video"},
		"maxResults": {"10"},
		"key":        {key},
	}
	if err := y.getCached(ctx, "/youtube/v3/search", q, &search); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(search.Items))
	for _, it := range search.Items {
		if it.ID.VideoID != "" {
			ids = append(ids, it.ID.VideoID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var vids ytVideos
	vq := url.Values{
		"part": {"snippet,statistics"},
		"id":   {strings.Join(ids, ",")},
		"key":  {key},
	}
	if err := y.getCached(ctx, "/youtube/v3/videos", vq, &vids); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var recs []record.Record
	for _, v := range vids.Items {
		views := atoi(v.Statistics.ViewCount)
		likes := atoi(v.Statistics.LikeCount)
		comments := atoi(v.Statistics.CommentCount)
		labels := map[string]string{"video_id": v.ID, "title": v.Snippet.Title}

		recs = append(recs,
			record.Record{Platform: job.PlatformYouTube, Entity: entity, Timestamp: now, Metric: record.MetricViewCount, Value: float64(views), Labels: labels},
			record.Record{Platform: job.PlatformYouTube, Entity: entity, Timestamp: now, Metric: record.MetricLikeCount, Value: float64(likes), Labels: labels},
			record.Record{Platform: job.PlatformYouTube, Entity: entity, Timestamp: now, Metric: record.MetricCommentCount, Value: float64(comments), Labels: labels},
			record.Record{
				Platform: job.PlatformYouTube, Entity: entity, Timestamp: now,
				Metric: record.MetricEngagementRate,
				Value:  analytics.YouTubeEngagement(likes, comments, views),
				Labels: labels,
			},
		)
	}
	return recs, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
