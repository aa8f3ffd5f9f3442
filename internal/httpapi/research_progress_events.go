package httpapi

import (
	"strings"

	"deepresearch/backend/internal/research"
)

func progressEventData(progress research.Progress) map[string]any {
	event := map[string]any{
		"type":  "progress",
		"phase": progress.Phase,
	}

	if message := strings.TrimSpace(progress.Message); message != "" {
		event["message"] = message
	}
	if progress.Loop > 0 {
		event["loop"] = progress.Loop
	}
	if progress.MaxLoops > 0 {
		event["maxLoops"] = progress.MaxLoops
	}
	if progress.QueryCount > 0 {
		event["queryCount"] = progress.QueryCount
	}
	if progress.SourceCount > 0 {
		event["sourceCount"] = progress.SourceCount
	}

	if title := strings.TrimSpace(progress.Title); title != "" {
		event["title"] = title
	}
	if detail := strings.TrimSpace(progress.Detail); detail != "" {
		event["detail"] = detail
	}
	if progress.IsQuickStep {
		event["isQuickStep"] = true
	}

	return event
}
