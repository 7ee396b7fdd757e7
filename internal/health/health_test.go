package health

import (
	"testing"
	"time"
)

func TestRecordOutcomeSuccessResetsErrors(t *testing.T) {
	tr := NewTracker()

	tr.RecordOutcome("rss", false)
	tr.RecordOutcome("rss", false)
	tr.RecordOutcome("rss", false)

	if got := tr.ErrorCount("rss"); got != 3 {
		t.Fatalf("expected 3 consecutive errors, got %d", got)
	}

	before := time.Now()
	tr.RecordOutcome("rss", true)

	rec := tr.Snapshot()["rss"]
	if rec.ErrorCount != 0 {
		t.Errorf("success should reset errorCount, got %d", rec.ErrorCount)
	}
	if rec.LastSuccess.Before(before) {
		t.Errorf("lastSuccess not updated: %v", rec.LastSuccess)
	}
	if rec.LastUsed.Before(before) {
		t.Errorf("lastUsed not updated: %v", rec.LastUsed)
	}
}

func TestFailureKeepsLastSuccess(t *testing.T) {
	tr := NewTracker()

	tr.RecordOutcome("gnews", true)
	success := tr.Snapshot()["gnews"].LastSuccess

	tr.RecordOutcome("gnews", false)
	rec := tr.Snapshot()["gnews"]

	if !rec.LastSuccess.Equal(success) {
		t.Errorf("failure must not move lastSuccess: %v != %v", rec.LastSuccess, success)
	}
	if rec.ErrorCount != 1 {
		t.Errorf("expected errorCount 1, got %d", rec.ErrorCount)
	}
}

func TestUnknownAdapter(t *testing.T) {
	tr := NewTracker()
	if got := tr.ErrorCount("never-seen"); got != 0 {
		t.Errorf("unknown adapter should have 0 errors, got %d", got)
	}
	if len(tr.Snapshot()) != 0 {
		t.Error("snapshot of empty tracker should be empty")
	}
}
