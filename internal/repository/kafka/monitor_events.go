package kafka

import (
	"context"

	"github.com/streamlens/streamlens/internal/domain/events"
)

// MonitorEventsKafka publishes scheduler events as JSON messages keyed
// by job id.
type MonitorEventsKafka struct {
	p *Producer
}

func NewMonitorEventsKafka(p *Producer) *MonitorEventsKafka { return &MonitorEventsKafka{p: p} }

var _ events.Publisher = (*MonitorEventsKafka)(nil)

type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func (e *MonitorEventsKafka) PublishRecordsCollected(ctx context.Context, ev events.RecordsCollected) error {
	return e.p.PublishJSON(ctx, KeyFromInt64(ev.JobID), envelope{Type: "records.collected", Payload: ev})
}

func (e *MonitorEventsKafka) PublishJobPaused(ctx context.Context, ev events.JobPaused) error {
	return e.p.PublishJSON(ctx, KeyFromInt64(ev.JobID), envelope{Type: "job.paused", Payload: ev})
}
