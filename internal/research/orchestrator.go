package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"deepresearch/backend/internal/metrics"
)

const (
	defaultInitialQueryCount     = 3
	defaultMaxLoops              = 2
	defaultMaxConcurrentSearches = 4
)

var ErrEmptyTopic = errors.New("topic is required")

type Orchestrator struct {
	backend    Backend
	planner    QueryPlanner
	reflector  ReflectionEngine
	controller ConvergenceController
	finalizer  AnswerFinalizer
	cfg        Config
	logger     *zap.Logger
}

func NewOrchestrator(backend Backend, planner QueryPlanner, reflector ReflectionEngine, finalizer AnswerFinalizer, cfg Config, logger *zap.Logger) Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.InitialQueryCount < 1 {
		cfg.InitialQueryCount = defaultInitialQueryCount
	}
	if cfg.MaxLoops < 1 {
		cfg.MaxLoops = defaultMaxLoops
	}
	if cfg.MaxConcurrentSearches < 1 {
		cfg.MaxConcurrentSearches = defaultMaxConcurrentSearches
	}
	if cfg.ResultsPerQuery < 1 {
		cfg.ResultsPerQuery = defaultResultsPerQuery
	}

	return Orchestrator{
		backend:    backend,
		planner:    planner,
		reflector:  reflector,
		controller: NewConvergenceController(planner),
		finalizer:  finalizer,
		cfg:        cfg,
		logger:     logger,
	}
}

func (o Orchestrator) Run(ctx context.Context, req Request, onProgress func(Progress)) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return Result{}, ErrEmptyTopic
	}

	queryCount := o.cfg.InitialQueryCount
	if req.InitialQueryCount > 0 {
		queryCount = req.InitialQueryCount
	}
	maxLoops := o.cfg.MaxLoops
	if req.MaxLoops > 0 {
		maxLoops = req.MaxLoops
	}

	timeout := o.cfg.Timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	runCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	startedAt := time.Now()
	session := NewSession(uuid.NewString(), topic, maxLoops)
	logger := o.logger.With(zap.String("session_id", session.ID))
	logger.Info("research session started",
		zap.String("topic", clipRunes(topic, 120)),
		zap.Int("initial_query_count", queryCount),
		zap.Int("max_loops", maxLoops),
		zap.String("backend", o.backendName()),
	)

	emitProgress(onProgress, Progress{
		Phase:    PhasePlanning,
		Message:  "Generating initial search queries",
		MaxLoops: maxLoops,
	})
	batch := o.planner.InitialBatch(runCtx, topic, queryCount)

	stopReason := StopReasonMaxLoops
	for {
		queries := session.dispatch(batch)
		emitProgress(onProgress, Progress{
			Phase:       PhaseSearching,
			Message:     fmt.Sprintf("Searching %d queries", len(queries)),
			Loop:        session.LoopCount + 1,
			MaxLoops:    maxLoops,
			QueryCount:  len(queries),
			SourceCount: session.Sources.Len(),
		})
		for _, result := range o.search(runCtx, session, queries) {
			session.merge(result)
			metrics.RecordRetrieval(o.backendName(), result.Unavailable)
			if result.Unavailable {
				session.warn("Some searches were unavailable; the answer may be incomplete.")
				logger.Warn("retrieval task unavailable",
					zap.Int("query_id", result.QueryID),
					zap.String("kind", string(Kind(result.Err))),
					zap.Error(result.Err),
				)
				continue
			}
			logger.Debug("retrieval task merged",
				zap.Int("query_id", result.QueryID),
				zap.Int("sources", len(result.Sources)),
			)
		}

		if err := runCtx.Err(); err != nil {
			return o.finish(session, "", nil, StopReasonTimeout, startedAt, logger), err
		}

		session.LoopCount++
		emitProgress(onProgress, Progress{
			Phase:       PhaseReflecting,
			Message:     fmt.Sprintf("Reflecting on %d findings", len(session.Evidence)),
			Loop:        session.LoopCount,
			MaxLoops:    maxLoops,
			SourceCount: session.Sources.Len(),
		})
		reflection, err := o.reflector.Evaluate(runCtx, topic, session.Evidence)
		if err != nil && runCtx.Err() != nil {
			logger.Warn("deadline reached during reflection", zap.Int("loop", session.LoopCount))
			return o.finish(session, "", nil, StopReasonTimeout, startedAt, logger), runCtx.Err()
		}
		if err != nil {
			session.warn("Reflection failed; answering from the evidence gathered so far.")
			logger.Warn("reflection failed", zap.Int("loop", session.LoopCount), zap.Error(err))
		} else {
			session.Sufficient = reflection.Sufficient
			session.KnowledgeGap = reflection.KnowledgeGap
		}

		decision := o.controller.Next(runCtx, session, reflection, err)
		if decision.Next == PhaseFinalizing {
			stopReason = decision.StopReason
			break
		}
		batch = decision.Queries
	}

	emitProgress(onProgress, Progress{
		Phase:       PhaseFinalizing,
		Message:     "Writing the final answer",
		Loop:        session.LoopCount,
		MaxLoops:    maxLoops,
		SourceCount: session.Sources.Len(),
	})
	if err := runCtx.Err(); err != nil {
		return o.finish(session, "", nil, StopReasonTimeout, startedAt, logger), err
	}
	answer, err := o.finalizer.Finalize(runCtx, topic, session.Evidence, session.Sources.All())
	if err != nil && runCtx.Err() != nil {
		logger.Warn("deadline reached during finalization", zap.Error(err))
		return o.finish(session, "", nil, StopReasonTimeout, startedAt, logger), runCtx.Err()
	}
	if err != nil {
		logger.Error("finalization failed", zap.String("kind", string(Kind(err))), zap.Error(err))
		return o.finish(session, "", nil, StopReasonError, startedAt, logger), err
	}

	result := o.finish(session, answer.Text, answer.ReferencedSources, stopReason, startedAt, logger)
	emitProgress(onProgress, Progress{
		Phase:       PhaseDone,
		Message:     fmt.Sprintf("Answer ready with %d sources", len(answer.ReferencedSources)),
		Loop:        session.LoopCount,
		MaxLoops:    maxLoops,
		SourceCount: len(answer.ReferencedSources),
	})
	return result, nil
}

// search runs one batch on a bounded pool and returns results in
// completion order once every task has finished.
func (o Orchestrator) search(ctx context.Context, session *Session, queries []Query) []TaskResult {
	completed := make(chan TaskResult, len(queries))

	var group errgroup.Group
	group.SetLimit(o.cfg.MaxConcurrentSearches)
	for _, query := range queries {
		task := RetrievalTask{Query: query, Backend: o.backend, Registry: session.Sources}
		group.Go(func() error {
			completed <- task.Run(ctx)
			return nil
		})
	}
	_ = group.Wait()
	close(completed)

	results := make([]TaskResult, 0, len(queries))
	for result := range completed {
		results = append(results, result)
	}
	return results
}

func (o Orchestrator) finish(session *Session, text string, referenced []Source, stopReason StopReason, startedAt time.Time, logger *zap.Logger) Result {
	elapsed := time.Since(startedAt)
	collected := session.Sources.Len()

	metrics.RecordSession(string(stopReason), session.LoopCount, elapsed)
	metrics.RecordSources(collected, len(referenced))
	logger.Info("research session finished",
		zap.String("stop_reason", string(stopReason)),
		zap.Int("loops", session.LoopCount),
		zap.Int("queries", len(session.Queries)),
		zap.Int("evidence", len(session.Evidence)),
		zap.Int("sources_collected", collected),
		zap.Int("sources_referenced", len(referenced)),
		zap.Int64("elapsed_ms", elapsed.Milliseconds()),
	)

	if referenced == nil {
		referenced = []Source{}
	}
	queries := make([]Query, len(session.Queries))
	copy(queries, session.Queries)
	return Result{
		Topic:       session.Topic,
		FinalText:   text,
		Sources:     referenced,
		Queries:     queries,
		Loops:       session.LoopCount,
		Evidence:    len(session.Evidence),
		Unavailable: session.Unavailable,
		Warnings:    session.Warnings,
		StopReason:  stopReason,
		ElapsedMS:   elapsed.Milliseconds(),
	}
}

func (o Orchestrator) backendName() string {
	if o.backend == nil {
		return "none"
	}
	return o.backend.Name()
}
