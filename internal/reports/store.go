package reports

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"deepresearch/backend/internal/research"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

var ErrNotFound = errors.New("report not found")

type Report struct {
	ID         string            `json:"id"`
	Topic      string            `json:"topic"`
	FinalText  string            `json:"finalText"`
	StopReason string            `json:"stopReason"`
	Loops      int               `json:"loops"`
	Provider   string            `json:"provider,omitempty"`
	Sources    []research.Source `json:"sources"`
	Queries    []research.Query  `json:"queries"`
	Warnings   []string          `json:"warnings,omitempty"`
	Trace      *Trace            `json:"trace,omitempty"`
	ElapsedMS  int64             `json:"elapsedMs"`
	CreatedAt  string            `json:"createdAt"`
}

// FromResult converts a finished research run into an unsaved report.
func FromResult(result research.Result, provider string) Report {
	return Report{
		Topic:      result.Topic,
		FinalText:  result.FinalText,
		StopReason: string(result.StopReason),
		Loops:      result.Loops,
		Provider:   provider,
		Sources:    result.Sources,
		Queries:    result.Queries,
		Warnings:   result.Warnings,
		ElapsedMS:  result.ElapsedMS,
	}
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) Store {
	return Store{db: db, now: time.Now}
}

func (s Store) Save(ctx context.Context, report Report) (Report, error) {
	if strings.TrimSpace(report.Topic) == "" {
		return Report{}, errors.New("report topic is required")
	}
	report.ID = uuid.NewString()
	report.CreatedAt = s.now().UTC().Format(time.RFC3339Nano)
	if report.Sources == nil {
		report.Sources = []research.Source{}
	}
	if report.Queries == nil {
		report.Queries = []research.Query{}
	}

	sources, err := json.Marshal(report.Sources)
	if err != nil {
		return Report{}, fmt.Errorf("encode report sources: %w", err)
	}
	queries, err := json.Marshal(report.Queries)
	if err != nil {
		return Report{}, fmt.Errorf("encode report queries: %w", err)
	}
	warnings, err := json.Marshal(nonNilStrings(report.Warnings))
	if err != nil {
		return Report{}, fmt.Errorf("encode report warnings: %w", err)
	}
	trace, err := encodeTrace(report.Trace)
	if err != nil {
		return Report{}, fmt.Errorf("encode report trace: %w", err)
	}

	query := `
INSERT INTO reports (id, topic, final_text, stop_reason, loops, provider, sources_json, queries_json, warnings_json, trace_json, elapsed_ms, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`
	if _, err := s.db.ExecContext(ctx, query,
		report.ID,
		report.Topic,
		report.FinalText,
		report.StopReason,
		report.Loops,
		report.Provider,
		string(sources),
		string(queries),
		string(warnings),
		trace,
		report.ElapsedMS,
		report.CreatedAt,
	); err != nil {
		return Report{}, fmt.Errorf("save report: %w", err)
	}

	return report, nil
}

func (s Store) Get(ctx context.Context, id string) (Report, error) {
	query := `
SELECT id, topic, final_text, stop_reason, loops, provider, sources_json, queries_json, warnings_json, trace_json, elapsed_ms, created_at
FROM reports
WHERE id = ?
LIMIT 1;
`
	report, err := scanReport(s.db.QueryRowContext(ctx, query, strings.TrimSpace(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, ErrNotFound
	}
	if err != nil {
		return Report{}, fmt.Errorf("get report: %w", err)
	}
	return report, nil
}

// List returns the most recent reports first.
func (s Store) List(ctx context.Context, limit int) ([]Report, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := `
SELECT id, topic, final_text, stop_reason, loops, provider, sources_json, queries_json, warnings_json, trace_json, elapsed_ms, created_at
FROM reports
ORDER BY created_at DESC, id DESC
LIMIT ?;
`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := make([]Report, 0, limit)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (Report, error) {
	var out Report
	var sources, queries, warnings, trace string
	if err := row.Scan(
		&out.ID,
		&out.Topic,
		&out.FinalText,
		&out.StopReason,
		&out.Loops,
		&out.Provider,
		&sources,
		&queries,
		&warnings,
		&trace,
		&out.ElapsedMS,
		&out.CreatedAt,
	); err != nil {
		return Report{}, err
	}
	if err := json.Unmarshal([]byte(sources), &out.Sources); err != nil {
		return Report{}, fmt.Errorf("decode report sources: %w", err)
	}
	if err := json.Unmarshal([]byte(queries), &out.Queries); err != nil {
		return Report{}, fmt.Errorf("decode report queries: %w", err)
	}
	if err := json.Unmarshal([]byte(warnings), &out.Warnings); err != nil {
		return Report{}, fmt.Errorf("decode report warnings: %w", err)
	}
	out.Trace = decodeTrace(trace)
	return out, nil
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
