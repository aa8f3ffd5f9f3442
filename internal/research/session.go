package research

import "strings"

type Query struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
	Loop int    `json:"loop"`
}

// Session is the state of one research run. Only the orchestrator goroutine
// touches it; retrieval tasks share nothing but the registry.
type Session struct {
	ID           string
	Topic        string
	Queries      []Query
	Evidence     []string
	Sources      *SourceRegistry
	LoopCount    int
	MaxLoops     int
	Sufficient   bool
	KnowledgeGap string
	Unavailable  int
	Warnings     []string

	lastQueryID int
}

func NewSession(id, topic string, maxLoops int) *Session {
	return &Session{
		ID:       id,
		Topic:    strings.TrimSpace(topic),
		Sources:  NewSourceRegistry(),
		MaxLoops: maxLoops,
	}
}

// dispatch assigns ids from the session counter and records the batch.
func (s *Session) dispatch(texts []string) []Query {
	batch := make([]Query, 0, len(texts))
	for _, text := range texts {
		s.lastQueryID++
		query := Query{ID: s.lastQueryID, Text: text, Loop: s.LoopCount}
		s.Queries = append(s.Queries, query)
		batch = append(batch, query)
	}
	return batch
}

func (s *Session) merge(result TaskResult) {
	if result.Unavailable {
		s.Unavailable++
		return
	}
	if strings.TrimSpace(result.Text) == "" {
		return
	}
	s.Evidence = append(s.Evidence, result.Text)
}

func (s *Session) warn(message string) {
	s.Warnings = appendUniqueWarning(s.Warnings, message)
}

func appendUniqueWarning(warnings []string, warning string) []string {
	trimmed := strings.TrimSpace(warning)
	if trimmed == "" {
		return warnings
	}
	for _, existing := range warnings {
		if existing == trimmed {
			return warnings
		}
	}
	return append(warnings, trimmed)
}
