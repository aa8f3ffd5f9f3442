package research

import (
	"strconv"
	"strings"
	"sync"
)

type Source struct {
	ID        int    `json:"id"`
	Token     string `json:"token"`
	Reference string `json:"reference"`
	Label     string `json:"label,omitempty"`
	Snippet   string `json:"snippet,omitempty"`
}

// SourceRegistry hands out stable short ids for canonical references.
// It is the only session state written by concurrent retrieval tasks.
type SourceRegistry struct {
	mu          sync.Mutex
	byReference map[string]int
	sources     []Source
}

func NewSourceRegistry() *SourceRegistry {
	return &SourceRegistry{byReference: make(map[string]int)}
}

func CitationToken(id int) string {
	return "[" + strconv.Itoa(id) + "]"
}

func canonicalReference(reference string) string {
	return strings.TrimSpace(reference)
}

// Register returns the existing source for reference, or records a new one.
// The second return value reports whether a record was created.
func (r *SourceRegistry) Register(reference, label, snippet string) (Source, bool) {
	key := canonicalReference(reference)

	r.mu.Lock()
	defer r.mu.Unlock()

	if idx, ok := r.byReference[key]; ok {
		return r.sources[idx], false
	}
	id := len(r.sources) + 1
	source := Source{
		ID:        id,
		Token:     CitationToken(id),
		Reference: key,
		Label:     clipRunes(strings.TrimSpace(label), 240),
		Snippet:   clipRunes(strings.TrimSpace(snippet), 800),
	}
	r.byReference[key] = len(r.sources)
	r.sources = append(r.sources, source)
	return source, true
}

func (r *SourceRegistry) Resolve(id int) (Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id < 1 || id > len(r.sources) {
		return Source{}, ErrSourceNotFound
	}
	return r.sources[id-1], nil
}

func (r *SourceRegistry) All() []Source {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}

func (r *SourceRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sources)
}
