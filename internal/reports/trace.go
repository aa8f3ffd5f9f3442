package reports

import (
	"encoding/json"
	"fmt"
	"strings"

	"deepresearch/backend/internal/research"
)

const (
	TraceStatusRunning = "running"
	TraceStatusDone    = "done"
	TraceStatusStopped = "stopped"
	maxTraceEntries    = 60
)

type TraceEntry struct {
	Phase       research.Phase `json:"phase"`
	Title       string         `json:"title"`
	Detail      string         `json:"detail,omitempty"`
	IsQuickStep bool           `json:"isQuickStep,omitempty"`
	Loop        *int           `json:"loop,omitempty"`
	MaxLoops    *int           `json:"maxLoops,omitempty"`
	QueryCount  *int           `json:"queryCount,omitempty"`
	SourceCount *int           `json:"sourceCount,omitempty"`
}

// Trace is the step-by-step progress log kept with a report.
type Trace struct {
	Status  string       `json:"status"`
	Summary string       `json:"summary"`
	Entries []TraceEntry `json:"entries"`
}

type TraceCollector struct {
	trace Trace
}

func NewTraceCollector() *TraceCollector {
	return &TraceCollector{
		trace: Trace{
			Status:  TraceStatusRunning,
			Summary: "Researching",
			Entries: make([]TraceEntry, 0, 8),
		},
	}
}

func (c *TraceCollector) AppendProgress(progress research.Progress) {
	if c == nil {
		return
	}

	title := strings.TrimSpace(progress.Title)
	if title == "" {
		title = strings.TrimSpace(progress.Message)
	}
	if title == "" {
		title = "Researching"
	}

	detail := strings.TrimSpace(progress.Detail)
	c.trace.Entries = append(c.trace.Entries, TraceEntry{
		Phase:       progress.Phase,
		Title:       title,
		Detail:      detail,
		IsQuickStep: progress.IsQuickStep,
		Loop:        optionalPositiveInt(progress.Loop),
		MaxLoops:    optionalPositiveInt(progress.MaxLoops),
		QueryCount:  optionalPositiveInt(progress.QueryCount),
		SourceCount: optionalNonNegativeInt(progress.SourceCount),
	})
	if len(c.trace.Entries) > maxTraceEntries {
		c.trace.Entries = c.trace.Entries[len(c.trace.Entries)-maxTraceEntries:]
	}

	if detail != "" {
		c.trace.Summary = fmt.Sprintf("%s: %s", title, detail)
		return
	}
	c.trace.Summary = title
}

func (c *TraceCollector) MarkDone() {
	if c == nil {
		return
	}
	c.trace.Status = TraceStatusDone
}

func (c *TraceCollector) MarkStopped(summary string) {
	if c == nil {
		return
	}
	c.trace.Status = TraceStatusStopped
	if trimmed := strings.TrimSpace(summary); trimmed != "" {
		c.trace.Summary = trimmed
	}
}

// Snapshot returns a copy, or nil when nothing was recorded.
func (c *TraceCollector) Snapshot() *Trace {
	if c == nil || len(c.trace.Entries) == 0 {
		return nil
	}
	entries := make([]TraceEntry, len(c.trace.Entries))
	copy(entries, c.trace.Entries)
	return &Trace{
		Status:  c.trace.Status,
		Summary: c.trace.Summary,
		Entries: entries,
	}
}

func encodeTrace(trace *Trace) (string, error) {
	if trace == nil || len(trace.Entries) == 0 {
		return "", nil
	}
	encoded, err := json.Marshal(trace)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// decodeTrace ignores malformed or empty payloads.
func decodeTrace(raw string) *Trace {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	var parsed Trace
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return nil
	}
	if len(parsed.Entries) == 0 {
		return nil
	}
	switch strings.TrimSpace(parsed.Status) {
	case TraceStatusRunning, TraceStatusDone, TraceStatusStopped:
	default:
		parsed.Status = TraceStatusDone
	}
	if strings.TrimSpace(parsed.Summary) == "" {
		last := parsed.Entries[len(parsed.Entries)-1]
		parsed.Summary = last.Title
		if strings.TrimSpace(last.Detail) != "" {
			parsed.Summary = fmt.Sprintf("%s: %s", last.Title, last.Detail)
		}
	}
	return &parsed
}

func optionalPositiveInt(value int) *int {
	if value <= 0 {
		return nil
	}
	v := value
	return &v
}

func optionalNonNegativeInt(value int) *int {
	if value < 0 {
		return nil
	}
	v := value
	return &v
}
