package record

import (
	"time"

	"github.com/streamlens/streamlens/internal/domain/job"
)

// Record is one normalized metric snapshot produced by a collector.
// Ownership passes to persistence once handed off.
type Record struct {
	ID        int64             `json:"id"`
	JobID     int64             `json:"job_id"`
	Platform  job.Platform      `json:"platform"`
	Entity    string            `json:"entity"`
	Timestamp time.Time         `json:"timestamp"`
	Metric    string            `json:"metric"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// Common metric names shared across collectors.
const (
	MetricViewerCount    = "viewer_count"
	MetricLive           = "is_live"
	MetricFollowerCount  = "follower_count"
	MetricLikeCount      = "like_count"
	MetricRetweetCount   = "retweet_count"
	MetricReplyCount     = "reply_count"
	MetricImpressions    = "impression_count"
	MetricViewCount      = "view_count"
	MetricCommentCount   = "comment_count"
	MetricPostScore      = "post_score"
	MetricUpvoteRatio    = "upvote_ratio"
	MetricEngagementRate = "engagement_rate"
	MetricSentiment      = "sentiment_compound"
)

// Point is one (timestamp, value) sample of a stored series.
type Point struct {
	Timestamp time.Time
	Value     float64
}
