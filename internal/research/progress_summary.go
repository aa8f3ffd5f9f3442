package research

import "fmt"

type Progress struct {
	Phase       Phase  `json:"phase"`
	Message     string `json:"message,omitempty"`
	Title       string `json:"title,omitempty"`
	Detail      string `json:"detail,omitempty"`
	IsQuickStep bool   `json:"isQuickStep,omitempty"`
	Loop        int    `json:"loop,omitempty"`
	MaxLoops    int    `json:"maxLoops,omitempty"`
	QueryCount  int    `json:"queryCount,omitempty"`
	SourceCount int    `json:"sourceCount,omitempty"`
}

type ProgressSummary struct {
	Title       string
	Detail      string
	IsQuickStep bool
}

func BuildProgressSummary(progress Progress) ProgressSummary {
	summary := ProgressSummary{}

	switch progress.Phase {
	case PhasePlanning:
		summary.Title = "Planning search queries"
		summary.Detail = "Breaking the question into focused searches"
	case PhaseSearching:
		if progress.QueryCount == 1 {
			summary.Title = "Running a web search"
			summary.IsQuickStep = true
		} else {
			summary.Title = "Searching the web"
			summary.Detail = fmt.Sprintf("Running %d searches in parallel", progress.QueryCount)
		}
	case PhaseReflecting:
		summary.Title = "Reviewing evidence"
		summary.Detail = "Checking whether the findings answer the question"
	case PhaseFinalizing:
		summary.Title = "Writing the answer"
		if progress.SourceCount > 0 {
			summary.Detail = fmt.Sprintf("Citing from %d collected sources", progress.SourceCount)
		}
	case PhaseDone:
		summary.Title = "Research complete"
		summary.IsQuickStep = true
	default:
		summary.Title = "Working"
	}

	return summary
}

func emitProgress(onProgress func(Progress), progress Progress) {
	if onProgress == nil {
		return
	}
	summary := BuildProgressSummary(progress)
	if progress.Title == "" {
		progress.Title = summary.Title
	}
	if progress.Detail == "" {
		progress.Detail = summary.Detail
	}
	progress.IsQuickStep = progress.IsQuickStep || summary.IsQuickStep
	onProgress(progress)
}
