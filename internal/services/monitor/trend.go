package monitor

import (
	"github.com/streamlens/streamlens/internal/analytics"
	"github.com/streamlens/streamlens/internal/domain/record"
)

type analyticsTrend = analytics.Trend

func trendOf(points []record.Point) analytics.Trend {
	samples := make([]analytics.Sample, len(points))
	for i, p := range points {
		samples[i] = analytics.Sample{Timestamp: p.Timestamp, Value: p.Value}
	}
	return analytics.AnalyzeTrend(samples)
}
