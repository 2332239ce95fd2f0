// Package query implements the retrieval orchestrator: it drives each query
// through embed → search → answer, logs every outcome, and returns the
// answer with its sources. A query is never lost — failures are recorded in
// the query log and surfaced to the caller alongside a user-readable answer.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kbase-ai/kbq-go/internal/answer"
	"github.com/kbase-ai/kbq-go/internal/querylog"
	"github.com/kbase-ai/kbq-go/internal/rag"
)

const (
	// defaultLimit caps search results when no limit is configured.
	defaultLimit = 5
	// defaultScoreThreshold filters out weakly matching results.
	defaultScoreThreshold = 0.7
)

// failedAnswer is returned to the user when a pipeline stage fails hard.
// The raw error goes to the query log and the returned error value, never
// into the user-facing text.
const failedAnswer = "Sorry, I could not complete your request. Please try again in a moment."

// Options tunes retrieval for the orchestrator.
type Options struct {
	// Limit is the maximum number of search results. Defaults to 5.
	Limit int

	// ScoreThreshold excludes results scoring below it. Defaults to 0.7.
	ScoreThreshold float32
}

// Result is the outcome of one query.
type Result struct {
	// QueryID identifies the query log record for this query.
	QueryID string

	// Answer is the generated (possibly degraded) answer text.
	Answer string

	// Sources are the retrieved documents backing the answer, ordered by
	// descending score.
	Sources []rag.SearchResult
}

// answerer generates an answer from retrieved context. *answer.Generator
// satisfies it; tests substitute a scripted implementation.
type answerer interface {
	GenerateAnswer(ctx context.Context, query string, docs []answer.DocumentContext) string
}

// Service drives queries through the retrieval pipeline.
type Service struct {
	embedder rag.Embedder
	index    rag.VectorIndex
	gen      answerer
	logs     querylog.Store
	metrics  *queryMetrics
	opts     Options
	log      *slog.Logger
}

// NewService constructs the orchestrator. All collaborators are required
// except reg, which defaults to the global Prometheus registerer.
func NewService(embedder rag.Embedder, index rag.VectorIndex, gen answerer, logs querylog.Store, opts Options, reg prometheus.Registerer, log *slog.Logger) (*Service, error) {
	if embedder == nil {
		return nil, fmt.Errorf("query: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("query: index must not be nil")
	}
	if gen == nil {
		return nil, fmt.Errorf("query: answer generator must not be nil")
	}
	if logs == nil {
		return nil, fmt.Errorf("query: query log must not be nil")
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if log == nil {
		log = slog.Default()
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}
	if opts.ScoreThreshold == 0 {
		opts.ScoreThreshold = defaultScoreThreshold
	}

	return &Service{
		embedder: embedder,
		index:    index,
		gen:      gen,
		logs:     logs,
		metrics:  newQueryMetrics(reg),
		opts:     opts,
		log:      log,
	}, nil
}

// Ask processes one query end to end. On stage failure the returned Result
// still carries the query id and a user-readable answer, and the error
// describes what failed; the failure is recorded in the query log either
// way.
func (s *Service) Ask(ctx context.Context, text string, qt querylog.QueryType) (Result, error) {
	start := time.Now()
	m := newMachine()

	// Pending record first: every query leaves a trace even if a later stage
	// fails. Logging itself is best-effort and never masks a stage error.
	id, err := s.logs.Append(ctx, text, qt)
	if err != nil {
		s.log.Warn("query log append failed", "error", err)
		id = uuid.NewString()
	}

	m.advance(StateEmbedding)
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return s.fail(ctx, m, id, start, fmt.Errorf("embed query: %w", err))
	}

	m.advance(StateSearching)
	sources, err := s.index.Search(ctx, vec, rag.SearchOptions{
		Limit:          s.opts.Limit,
		ScoreThreshold: s.opts.ScoreThreshold,
	})
	if err != nil {
		return s.fail(ctx, m, id, start, fmt.Errorf("search index: %w", err))
	}
	s.metrics.documentsRetrieved.Observe(float64(len(sources)))

	m.advance(StateAnswering)
	docs := make([]answer.DocumentContext, len(sources))
	for i, src := range sources {
		docs[i] = answer.DocumentContext{
			ID:      src.ID,
			Title:   src.Title,
			Content: src.Content,
			Score:   src.Score,
		}
	}
	// GenerateAnswer degrades internally and never fails.
	ans := s.gen.GenerateAnswer(ctx, text, docs)

	m.advance(StateLogged)
	elapsed := time.Since(start)
	if err := s.logs.Update(ctx, id, querylog.Outcome{
		Answer:    ans,
		Documents: len(sources),
		Duration:  elapsed,
	}); err != nil {
		s.log.Warn("query log update failed", "query_id", id, "error", err)
	}

	s.metrics.queriesTotal.WithLabelValues("ok").Inc()
	s.metrics.durationSeconds.WithLabelValues("ok").Observe(elapsed.Seconds())
	s.log.Info("query answered",
		"query_id", id,
		"documents", len(sources),
		"duration_ms", elapsed.Milliseconds(),
	)

	return Result{QueryID: id, Answer: ans, Sources: sources}, nil
}

// fail records the stage error in the query log, emits metrics, and returns
// a degraded result together with the original error.
func (s *Service) fail(ctx context.Context, m *machine, id string, start time.Time, cause error) (Result, error) {
	stage := string(m.current)
	m.advance(StateErrored)
	m.advance(StateLogged)

	elapsed := time.Since(start)
	if err := s.logs.Update(ctx, id, querylog.Outcome{
		Error:    cause.Error(),
		Duration: elapsed,
	}); err != nil {
		s.log.Warn("query log update failed", "query_id", id, "error", err)
	}

	s.metrics.queriesTotal.WithLabelValues(stage).Inc()
	s.metrics.durationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
	s.log.Error("query failed",
		"query_id", id,
		"stage", stage,
		"error", cause,
	)

	return Result{QueryID: id, Answer: failedAnswer}, fmt.Errorf("query: %s: %w", stage, cause)
}
