package analytics

import (
	"math"
	"time"
)

type Direction string

const (
	DirectionUp           Direction = "up"
	DirectionDown         Direction = "down"
	DirectionStable       Direction = "stable"
	DirectionInsufficient Direction = "insufficient_data"
)

// Growth describes the change between two measurements.
type Growth struct {
	AbsoluteChange float64   `json:"absolute_change"`
	PercentChange  float64   `json:"percent_change"`
	DailyRate      float64   `json:"daily_rate"`
	Direction      Direction `json:"direction"`
}

func GrowthRate(current, previous float64, periodDays int) Growth {
	if periodDays <= 0 {
		periodDays = 1
	}
	if previous == 0 {
		if current > 0 {
			return Growth{
				AbsoluteChange: current,
				PercentChange:  100,
				DailyRate:      current / float64(periodDays),
				Direction:      DirectionUp,
			}
		}
		return Growth{Direction: DirectionStable}
	}

	abs := current - previous
	g := Growth{
		AbsoluteChange: abs,
		PercentChange:  round2(abs / previous * 100),
		DailyRate:      round2(abs / float64(periodDays)),
		Direction:      DirectionStable,
	}
	if abs > 0 {
		g.Direction = DirectionUp
	} else if abs < 0 {
		g.Direction = DirectionDown
	}
	return g
}

// Sample is one time-series observation.
type Sample struct {
	Timestamp time.Time
	Value     float64
}

// Trend summarizes a time series: direction from a first-half/second-
// half mean comparison, plus spread statistics.
type Trend struct {
	Direction  Direction `json:"trend_direction"`
	Average    float64   `json:"average_value"`
	Peak       float64   `json:"peak_value"`
	Low        float64   `json:"low_value"`
	Volatility float64   `json:"volatility"`
}

func AnalyzeTrend(series []Sample) Trend {
	if len(series) < 2 {
		return Trend{Direction: DirectionInsufficient}
	}

	var sum float64
	peak := series[0].Value
	low := series[0].Value
	for _, s := range series {
		sum += s.Value
		if s.Value > peak {
			peak = s.Value
		}
		if s.Value < low {
			low = s.Value
		}
	}
	avg := sum / float64(len(series))

	var variance float64
	for _, s := range series {
		d := s.Value - avg
		variance += d * d
	}
	stddev := math.Sqrt(variance / float64(len(series)))

	mid := len(series) / 2
	firstAvg := mean(series[:mid])
	secondAvg := mean(series[mid:])

	dir := DirectionStable
	// A quarter of a standard deviation separates signal from noise.
	if secondAvg-firstAvg > stddev/4 {
		dir = DirectionUp
	} else if firstAvg-secondAvg > stddev/4 {
		dir = DirectionDown
	}

	return Trend{
		Direction:  dir,
		Average:    round2(avg),
		Peak:       peak,
		Low:        low,
		Volatility: round2(stddev),
	}
}

func mean(s []Sample) float64 {
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s {
		sum += v.Value
	}
	return sum / float64(len(s))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
