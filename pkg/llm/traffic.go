package llm

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// rawPreviewLimit caps the stored request/response previews.
const rawPreviewLimit = 500

// TrafficRecord is one adapter call snapshot, written before the adapter
// returns. HasGroundingTools/HasResponseSchema make the compatibility gate
// observable.
type TrafficRecord struct {
	TaskType          string
	Vendor            string
	Model             string
	Mode              Mode
	HasGroundingTools bool
	HasResponseSchema bool
	RequestPreview    string
	ResponsePreview   string
	FinishReason      string
	ErrorReason       string
	At                time.Time
}

// TrafficLogger receives raw traffic records from adapters.
type TrafficLogger interface {
	Record(ctx context.Context, rec TrafficRecord)
}

// Preview truncates a payload for traffic records and failure envelopes.
func Preview(s string) string {
	if len(s) <= rawPreviewLimit {
		return s
	}
	return s[:rawPreviewLimit]
}

// SlogTraffic logs traffic records through slog.
type SlogTraffic struct{}

func (SlogTraffic) Record(_ context.Context, rec TrafficRecord) {
	slog.Debug("llm traffic",
		"task_type", rec.TaskType,
		"vendor", rec.Vendor,
		"model", rec.Model,
		"mode", string(rec.Mode),
		"has_grounding_tools", rec.HasGroundingTools,
		"has_response_schema", rec.HasResponseSchema,
		"finish_reason", rec.FinishReason,
		"error_reason", rec.ErrorReason,
	)
}

// MemoryTraffic keeps records in memory; used by tests asserting the
// grounding compatibility pair.
type MemoryTraffic struct {
	mu      sync.Mutex
	records []TrafficRecord
}

func (m *MemoryTraffic) Record(_ context.Context, rec TrafficRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
}

// Records returns a copy of all recorded traffic.
func (m *MemoryTraffic) Records() []TrafficRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TrafficRecord, len(m.records))
	copy(out, m.records)
	return out
}
