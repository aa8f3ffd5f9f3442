package research

import "context"

type Phase string

const (
	PhasePlanning   Phase = "planning"
	PhaseSearching  Phase = "searching"
	PhaseReflecting Phase = "reflecting"
	PhaseFinalizing Phase = "finalizing"
	PhaseDone       Phase = "done"
)

type Decision struct {
	Next       Phase
	StopReason StopReason
	Queries    []string
}

// ConvergenceController decides what follows a reflection cycle. It is
// consulted after the session loop counter has been incremented.
type ConvergenceController struct {
	planner QueryPlanner
}

func NewConvergenceController(planner QueryPlanner) ConvergenceController {
	return ConvergenceController{planner: planner}
}

func (c ConvergenceController) Next(ctx context.Context, session *Session, reflection Reflection, reflectionErr error) Decision {
	// A failed reflection counts as insufficient with nothing left to search.
	if reflectionErr != nil {
		return Decision{Next: PhaseFinalizing, StopReason: StopReasonReflectionError}
	}
	if session.Sufficient {
		return Decision{Next: PhaseFinalizing, StopReason: StopReasonSufficient}
	}
	if session.LoopCount >= session.MaxLoops {
		return Decision{Next: PhaseFinalizing, StopReason: StopReasonMaxLoops}
	}

	queries := reflection.FollowupQueries
	if len(queries) == 0 && reflection.KnowledgeGap != "" {
		queries = c.planner.FollowupBatch(ctx, session.Topic, session.Evidence, reflection.KnowledgeGap)
	}
	if len(queries) == 0 {
		return Decision{Next: PhaseFinalizing, StopReason: StopReasonNoFollowups}
	}
	return Decision{Next: PhaseSearching, Queries: queries}
}
