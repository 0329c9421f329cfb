package journal

import (
	"context"
	"testing"

	"futures-exec/internal/config"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()

	j, err := Open(config.DatabaseConfig{
		InMemory:     true,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, nil)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() {
		if err := j.Close(); err != nil {
			t.Errorf("Close returned error: %v", err)
		}
	})
	return j
}

func TestJournalRecordAndRecent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	j.Record(ctx, "oco", "placed", "OCO 组合已挂出", map[string]interface{}{
		"symbol":      "BTCUSDT",
		"tp_order_id": "123",
	})
	j.Record(ctx, "twap", "completed", "TWAP 执行完成", nil)

	events, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent returned error: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	// 按时间倒序
	if events[0].Strategy != "twap" || events[0].EventType != "completed" {
		t.Errorf("unexpected newest event: %+v", events[0])
	}
	if events[1].Strategy != "oco" {
		t.Errorf("unexpected oldest event: %+v", events[1])
	}
	if events[1].Details == "" {
		t.Errorf("details should carry the JSON payload")
	}
	if events[0].Details != "" {
		t.Errorf("nil details should be stored empty, got %q", events[0].Details)
	}
	if events[0].OccurredAt.IsZero() {
		t.Errorf("occurred_at should parse")
	}
}

func TestJournalRecentLimit(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		j.Record(ctx, "grid", "level_placed", "网格价位已挂出", nil)
	}

	events, err := j.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent returned error: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("expected 3 events, got %d", len(events))
	}
}
