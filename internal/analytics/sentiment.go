package analytics

import "strings"

// Scores is a sentiment breakdown for one text. Compound ranges -1..1.
type Scores struct {
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
	Positive float64 `json:"positive"`
	Compound float64 `json:"compound"`
}

var positiveWords = []string{
	"good", "great", "excellent", "amazing", "wonderful", "fantastic",
	"love", "like", "best", "awesome", "perfect", "happy", "glad",
	"thanks", "thank", "appreciate", "beautiful", "brilliant", "nice",
}

var negativeWords = []string{
	"bad", "terrible", "awful", "horrible", "worst", "hate", "dislike",
	"poor", "disappointing", "sad", "angry", "annoying", "frustrating",
	"useless", "broken", "fail", "failed", "wrong", "problem",
}

// Sentiment scores text by keyword occurrence. Pure function; callers
// route identical inputs through the cache to avoid recomputation.
func Sentiment(text string) Scores {
	if strings.TrimSpace(text) == "" {
		return Scores{Neutral: 1}
	}
	lower := strings.ToLower(text)

	var pos, neg int
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			pos++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			neg++
		}
	}
	total := pos + neg
	if total == 0 {
		return Scores{Neutral: 1}
	}

	p := float64(pos) / float64(total)
	n := float64(neg) / float64(total)
	neu := 1 - (p + n)
	if neu < 0 {
		neu = 0
	}
	return Scores{Negative: n, Neutral: neu, Positive: p, Compound: p - n}
}
