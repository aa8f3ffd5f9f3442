package research

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var bracketCitationPattern = regexp.MustCompile(`\[(\d{1,3})\]`)

type citationMarker struct {
	Offset int
	Tokens []string
}

// insertCitationMarkers places tokens right after their byte offsets. Offsets
// outside the text or inside a multi-byte rune are skipped, and a token is
// inserted at most once per offset.
func insertCitationMarkers(text string, markers []citationMarker) string {
	if len(markers) == 0 {
		return text
	}

	byOffset := make(map[int][]string, len(markers))
	seen := make(map[int]map[string]struct{}, len(markers))
	for _, marker := range markers {
		if marker.Offset < 0 || marker.Offset > len(text) {
			continue
		}
		if marker.Offset < len(text) && !utf8.RuneStart(text[marker.Offset]) {
			continue
		}
		if seen[marker.Offset] == nil {
			seen[marker.Offset] = make(map[string]struct{}, len(marker.Tokens))
		}
		for _, token := range marker.Tokens {
			if token == "" {
				continue
			}
			if _, ok := seen[marker.Offset][token]; ok {
				continue
			}
			seen[marker.Offset][token] = struct{}{}
			byOffset[marker.Offset] = append(byOffset[marker.Offset], token)
		}
	}

	offsets := make([]int, 0, len(byOffset))
	for offset, tokens := range byOffset {
		if len(tokens) > 0 {
			offsets = append(offsets, offset)
		}
	}
	// Descending so earlier offsets stay valid while inserting.
	sort.Sort(sort.Reverse(sort.IntSlice(offsets)))

	out := text
	for _, offset := range offsets {
		out = out[:offset] + strings.Join(byOffset[offset], "") + out[offset:]
	}
	return out
}

// remapLocalCitations rewrites [i] references to a per-task result list into
// registry tokens. An unmapped bracket glued to a preceding word, such as
// items[0], is a subscript and stays as written. A standalone unmapped index
// is removed, since it would otherwise read as a registry token later.
func remapLocalCitations(text string, mapping map[int]string) string {
	matches := bracketCitationPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		index, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}
		token, ok := mapping[index]
		if !ok && isSubscript(text, start) {
			continue
		}
		b.WriteString(text[last:start])
		b.WriteString(token)
		last = end
	}
	b.WriteString(text[last:])
	return b.String()
}

func isSubscript(text string, bracket int) bool {
	if bracket == 0 {
		return false
	}
	prev, _ := utf8.DecodeLastRuneInString(text[:bracket])
	return prev == '_' || prev == ')' || prev == ']' || unicode.IsLetter(prev) || unicode.IsDigit(prev)
}

// expandCitations swaps every short token found in text for its canonical
// reference and reports the sources that were cited, in id order.
func expandCitations(text string, sources []Source) (string, []Source) {
	ordered := make([]Source, len(sources))
	copy(ordered, sources)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	referenced := make([]Source, 0, len(ordered))
	pairs := make([]string, 0, len(ordered)*2)
	for _, source := range ordered {
		if source.Token == "" || !strings.Contains(text, source.Token) {
			continue
		}
		referenced = append(referenced, source)
		pairs = append(pairs, source.Token, source.Reference)
	}
	if len(pairs) == 0 {
		return text, referenced
	}
	// Single pass so a substituted reference is never rescanned for tokens.
	return strings.NewReplacer(pairs...).Replace(text), referenced
}
