package analytics

// Engagement formulas per platform. Rates are percentages except the
// Reddit score, which has no view denominator.

// TwitterEngagement is (likes + retweets + replies) / impressions x 100.
func TwitterEngagement(likes, retweets, replies, impressions int) float64 {
	if impressions == 0 {
		return 0
	}
	return float64(likes+retweets+replies) / float64(impressions) * 100
}

// RedditEngagement is upvotes + comments x weight; comments signal more
// effort than votes.
func RedditEngagement(upvotes, comments int, commentWeight float64) float64 {
	return float64(upvotes) + float64(comments)*commentWeight
}

// YouTubeEngagement is (likes + comments) / views x 100.
func YouTubeEngagement(likes, comments, views int) float64 {
	if views == 0 {
		return 0
	}
	return float64(likes+comments) / float64(views) * 100
}

// TwitchEngagement is chat messages per minute / viewers x 100.
func TwitchEngagement(messagesPerMinute float64, viewers int) float64 {
	if viewers == 0 {
		return 0
	}
	return messagesPerMinute / float64(viewers) * 100
}

// CategorizeEngagement buckets a rate into Low/Medium/High/Excellent
// using per-platform thresholds.
func CategorizeEngagement(rate float64, platform string) string {
	type th struct{ medium, high, excellent float64 }
	thresholds := map[string]th{
		"twitter": {0.5, 1.5, 3.0},
		"youtube": {2.0, 5.0, 10.0},
		"twitch":  {1.0, 3.0, 5.0},
		"reddit":  {50, 200, 500},
	}
	t, ok := thresholds[platform]
	if !ok {
		t = th{1.0, 3.0, 5.0}
	}
	switch {
	case rate >= t.excellent:
		return "Excellent"
	case rate >= t.high:
		return "High"
	case rate >= t.medium:
		return "Medium"
	default:
		return "Low"
	}
}
