package history

import (
	"context"
	"sync"
	"testing"
	"time"
)

type writtenPoint struct {
	measurement string
	tags        map[string]string
	fields      map[string]any
	ts          time.Time
}

type mockPointWriter struct {
	mu     sync.Mutex
	points []writtenPoint
}

func (m *mockPointWriter) Write(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = append(m.points, writtenPoint{measurement, tags, fields, ts})
}

func TestPointRecorder(t *testing.T) {
	w := &mockPointWriter{}
	rec := NewPointRecorder(w)
	started := time.Date(2026, 10, 19, 7, 30, 0, 0, time.UTC)

	err := rec.RecordRun(context.Background(), Run{
		ID:           "r1",
		Kind:         KindReconcile,
		Trigger:      "resync",
		Result:       ResultConvergedWithFailures,
		Attempts:     2,
		Devices:      4,
		Writes:       9,
		FailedWrites: 1,
		StartedAt:    started,
		Elapsed:      2500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}

	if len(w.points) != 1 {
		t.Fatalf("wrote %d points, want 1", len(w.points))
	}
	p := w.points[0]
	if p.measurement != MeasurementRuns || !p.ts.Equal(started) {
		t.Errorf("point = %s at %v", p.measurement, p.ts)
	}
	if p.tags["kind"] != KindReconcile || p.tags["trigger"] != "resync" || p.tags["result"] != ResultConvergedWithFailures {
		t.Errorf("tags = %v", p.tags)
	}
	if p.fields["writes"] != 9 || p.fields["failed_writes"] != 1 || p.fields["elapsed_ms"] != int64(2500) {
		t.Errorf("fields = %v", p.fields)
	}
}

func TestPointRecorder_DefaultsTimestampAndOmitsEmptyTrigger(t *testing.T) {
	w := &mockPointWriter{}
	before := time.Now()

	if err := NewPointRecorder(w).RecordRun(context.Background(), Run{Kind: KindPing, Result: ResultCompleted}); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}

	p := w.points[0]
	if p.ts.Before(before) {
		t.Errorf("timestamp %v predates the call", p.ts)
	}
	if _, ok := p.tags["trigger"]; ok {
		t.Errorf("tags = %v, want no trigger tag", p.tags)
	}
}
