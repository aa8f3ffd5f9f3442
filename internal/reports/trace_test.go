package reports

import (
	"fmt"
	"testing"

	"deepresearch/backend/internal/research"
)

func TestTraceCollectorCapsEntries(t *testing.T) {
	collector := NewTraceCollector()

	for i := 1; i <= maxTraceEntries+15; i++ {
		collector.AppendProgress(research.Progress{
			Phase: research.PhaseSearching,
			Title: fmt.Sprintf("Step %d", i),
		})
	}

	collector.MarkDone()
	snapshot := collector.Snapshot()
	if snapshot == nil {
		t.Fatal("expected snapshot")
	}
	if len(snapshot.Entries) != maxTraceEntries {
		t.Fatalf("expected %d entries, got %d", maxTraceEntries, len(snapshot.Entries))
	}
	if snapshot.Entries[0].Title != "Step 16" {
		t.Fatalf("expected first retained entry to be Step 16, got %q", snapshot.Entries[0].Title)
	}
	if snapshot.Status != TraceStatusDone {
		t.Fatalf("expected done status, got %q", snapshot.Status)
	}
}

func TestTraceCollectorFallsBackToMessageAndTracksSummary(t *testing.T) {
	collector := NewTraceCollector()
	collector.AppendProgress(research.Progress{Phase: research.PhasePlanning, Message: "Generating initial search queries"})
	collector.AppendProgress(research.Progress{Phase: research.PhaseSearching, Title: "Searching the web", Detail: "Running 3 searches in parallel", QueryCount: 3})
	collector.MarkStopped("")

	snapshot := collector.Snapshot()
	if snapshot.Entries[0].Title != "Generating initial search queries" {
		t.Fatalf("unexpected first title: %q", snapshot.Entries[0].Title)
	}
	if snapshot.Entries[1].QueryCount == nil || *snapshot.Entries[1].QueryCount != 3 {
		t.Fatalf("unexpected query count: %+v", snapshot.Entries[1].QueryCount)
	}
	if snapshot.Summary != "Searching the web: Running 3 searches in parallel" {
		t.Fatalf("unexpected summary: %q", snapshot.Summary)
	}
	if snapshot.Status != TraceStatusStopped {
		t.Fatalf("expected stopped status, got %q", snapshot.Status)
	}
}

func TestEmptyCollectorHasNoSnapshot(t *testing.T) {
	if snapshot := NewTraceCollector().Snapshot(); snapshot != nil {
		t.Fatalf("expected nil snapshot, got %+v", snapshot)
	}
	if encoded, err := encodeTrace(nil); err != nil || encoded != "" {
		t.Fatalf("expected empty encoding, got %q, %v", encoded, err)
	}
}

func TestDecodeTraceInvalidIsIgnored(t *testing.T) {
	if trace := decodeTrace("{not-json}"); trace != nil {
		t.Fatalf("expected invalid JSON to be ignored, got %+v", trace)
	}
	if trace := decodeTrace(`{"status":"weird","entries":[{"phase":"done","title":"Research complete"}]}`); trace == nil ||
		trace.Status != TraceStatusDone || trace.Summary != "Research complete" {
		t.Fatalf("unexpected decoded trace: %+v", trace)
	}
}
