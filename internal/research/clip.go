package research

// clipRunes keeps at most limit runes of raw, cutting on a rune boundary.
func clipRunes(raw string, limit int) string {
	if limit <= 0 {
		return ""
	}
	count := 0
	for i := range raw {
		if count == limit {
			return raw[:i]
		}
		count++
	}
	return raw
}
