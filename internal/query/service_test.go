package query

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kbase-ai/kbq-go/internal/answer"
	"github.com/kbase-ai/kbq-go/internal/querylog"
	"github.com/kbase-ai/kbq-go/internal/rag"
)

// fakeEmbedder returns a fixed vector or a scripted error.
type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return f.vec, f.err
}
func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v, err := f.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
func (f *fakeEmbedder) Dimension() int { return len(f.vec) }

// fakeIndex returns canned search results and records the search options.
type fakeIndex struct {
	results  []rag.SearchResult
	err      error
	lastOpts rag.SearchOptions
	searches int
}

func (f *fakeIndex) EnsureCollection(context.Context) error { return nil }
func (f *fakeIndex) Search(_ context.Context, _ []float32, opts rag.SearchOptions) ([]rag.SearchResult, error) {
	f.searches++
	f.lastOpts = opts
	return f.results, f.err
}
func (f *fakeIndex) Upsert(context.Context, rag.VectorPoint) error            { return nil }
func (f *fakeIndex) UpsertBatch(context.Context, []rag.VectorPoint) error     { return nil }
func (f *fakeIndex) Delete(context.Context, string) error                     { return nil }
func (f *fakeIndex) DeleteBatch(context.Context, []string) error              { return nil }
func (f *fakeIndex) Count(context.Context, map[string]string) (uint64, error) { return 0, nil }
func (f *fakeIndex) Get(context.Context, string) (*rag.SearchResult, error)   { return nil, nil }
func (f *fakeIndex) ReindexAll(context.Context) error                         { return nil }
func (f *fakeIndex) HealthCheck(context.Context) bool                         { return true }
func (f *fakeIndex) Close() error                                             { return nil }

// scriptedAnswerer returns a fixed answer and records what it was given.
type scriptedAnswerer struct {
	answer   string
	lastDocs []answer.DocumentContext
}

func (s *scriptedAnswerer) GenerateAnswer(_ context.Context, _ string, docs []answer.DocumentContext) string {
	s.lastDocs = docs
	return s.answer
}

// memLog is an in-memory querylog.Store.
type memLog struct {
	appendErr error
	records   map[string]querylog.Record
	order     []string
}

func newMemLog() *memLog {
	return &memLog{records: map[string]querylog.Record{}}
}

func (m *memLog) Append(_ context.Context, q string, qt querylog.QueryType) (string, error) {
	if m.appendErr != nil {
		return "", m.appendErr
	}
	id := "q" + string(rune('1'+len(m.order)))
	m.records[id] = querylog.Record{ID: id, Query: q, Type: qt, CreatedAt: time.Now()}
	m.order = append(m.order, id)
	return id, nil
}

func (m *memLog) Update(_ context.Context, id string, out querylog.Outcome) error {
	rec, ok := m.records[id]
	if !ok {
		return rag.ErrNotFound
	}
	rec.Answer = out.Answer
	rec.Error = out.Error
	rec.Documents = out.Documents
	rec.Duration = out.Duration
	m.records[id] = rec
	return nil
}

func (m *memLog) List(context.Context, int) ([]querylog.Record, error) { return nil, nil }
func (m *memLog) Get(_ context.Context, id string) (querylog.Record, error) {
	rec, ok := m.records[id]
	if !ok {
		return querylog.Record{}, rag.ErrNotFound
	}
	return rec, nil
}
func (m *memLog) Close() error { return nil }

type testEnv struct {
	svc   *Service
	emb   *fakeEmbedder
	index *fakeIndex
	gen   *scriptedAnswerer
	logs  *memLog
	reg   *prometheus.Registry
}

func newTestService(t *testing.T, emb *fakeEmbedder, ix *fakeIndex, gen *scriptedAnswerer, logs *memLog, opts Options) *testEnv {
	t.Helper()
	reg := prometheus.NewRegistry()
	svc, err := NewService(emb, ix, gen, logs, opts, reg, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &testEnv{svc: svc, emb: emb, index: ix, gen: gen, logs: logs, reg: reg}
}

// counterValue reads a single labelled counter from the registry.
func counterValue(t *testing.T, reg *prometheus.Registry, name, labelValue string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "outcome" && lp.GetValue() == labelValue {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func Test_Service_Ask_BusinessHours(t *testing.T) {
	t.Parallel()
	env := newTestService(t,
		&fakeEmbedder{vec: []float32{0.1, 0.2, 0.3}},
		&fakeIndex{results: []rag.SearchResult{{
			ID:      "support/hours_chunk_0",
			Score:   0.95,
			Content: "Monday through Friday, 9 AM to 6 PM EST",
			Title:   "Business Hours",
		}}},
		&scriptedAnswerer{answer: "We are open Monday through Friday, 9 AM to 6 PM EST."},
		newMemLog(),
		Options{},
	)

	res, err := env.svc.Ask(context.Background(), "What are your business hours?", querylog.TypeText)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.QueryID == "" {
		t.Error("empty query id")
	}
	if len(res.Sources) != 1 {
		t.Fatalf("sources = %d, want 1", len(res.Sources))
	}
	if res.Sources[0].Score != 0.95 {
		t.Errorf("sources[0].Score = %v, want 0.95", res.Sources[0].Score)
	}
	if res.Answer != "We are open Monday through Friday, 9 AM to 6 PM EST." {
		t.Errorf("answer = %q", res.Answer)
	}

	// The generator received the retrieved document as context.
	if len(env.gen.lastDocs) != 1 || env.gen.lastDocs[0].Content != "Monday through Friday, 9 AM to 6 PM EST" {
		t.Errorf("generator docs = %+v", env.gen.lastDocs)
	}

	// The pending record was updated with the outcome.
	rec, err := env.logs.Get(context.Background(), res.QueryID)
	if err != nil {
		t.Fatalf("log record: %v", err)
	}
	if rec.Answer != res.Answer {
		t.Errorf("logged answer = %q", rec.Answer)
	}
	if rec.Documents != 1 {
		t.Errorf("logged documents = %d, want 1", rec.Documents)
	}
	if rec.Error != "" {
		t.Errorf("logged error = %q, want empty", rec.Error)
	}

	if v := counterValue(t, env.reg, "kbq_query_total", "ok"); v != 1 {
		t.Errorf("kbq_query_total{outcome=ok} = %v, want 1", v)
	}
}

func Test_Service_Ask_DefaultSearchOptions(t *testing.T) {
	t.Parallel()
	env := newTestService(t,
		&fakeEmbedder{vec: []float32{1}},
		&fakeIndex{},
		&scriptedAnswerer{answer: "x"},
		newMemLog(),
		Options{},
	)

	if _, err := env.svc.Ask(context.Background(), "anything", querylog.TypeText); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if env.index.lastOpts.Limit != 5 {
		t.Errorf("limit = %d, want 5", env.index.lastOpts.Limit)
	}
	if env.index.lastOpts.ScoreThreshold != 0.7 {
		t.Errorf("threshold = %v, want 0.7", env.index.lastOpts.ScoreThreshold)
	}
}

func Test_Service_Ask_EmbedFailureStillLogged(t *testing.T) {
	t.Parallel()
	env := newTestService(t,
		&fakeEmbedder{err: errors.New("provider unreachable")},
		&fakeIndex{},
		&scriptedAnswerer{answer: "unused"},
		newMemLog(),
		Options{},
	)

	res, err := env.svc.Ask(context.Background(), "hours?", querylog.TypeText)
	if err == nil {
		t.Fatal("expected error")
	}
	if res.Answer != failedAnswer {
		t.Errorf("answer = %q, want degraded message", res.Answer)
	}
	if res.QueryID == "" {
		t.Error("empty query id on failure")
	}
	if env.index.searches != 0 {
		t.Errorf("search called %d times after embed failure", env.index.searches)
	}

	rec, getErr := env.logs.Get(context.Background(), res.QueryID)
	if getErr != nil {
		t.Fatalf("log record: %v", getErr)
	}
	if rec.Error == "" {
		t.Error("failure not recorded in query log")
	}
	if rec.Answer != "" {
		t.Errorf("logged answer = %q, want empty on failure", rec.Answer)
	}

	if v := counterValue(t, env.reg, "kbq_query_total", "embedding"); v != 1 {
		t.Errorf("kbq_query_total{outcome=embedding} = %v, want 1", v)
	}
}

func Test_Service_Ask_SearchFailure(t *testing.T) {
	t.Parallel()
	env := newTestService(t,
		&fakeEmbedder{vec: []float32{1}},
		&fakeIndex{err: rag.ErrIndexUnavailable},
		&scriptedAnswerer{answer: "unused"},
		newMemLog(),
		Options{},
	)

	res, err := env.svc.Ask(context.Background(), "hours?", querylog.TypeText)
	if !errors.Is(err, rag.ErrIndexUnavailable) {
		t.Fatalf("err = %v, want wrapped rag.ErrIndexUnavailable", err)
	}
	if res.Answer != failedAnswer {
		t.Errorf("answer = %q, want degraded message", res.Answer)
	}
	if v := counterValue(t, env.reg, "kbq_query_total", "searching"); v != 1 {
		t.Errorf("kbq_query_total{outcome=searching} = %v, want 1", v)
	}
}

func Test_Service_Ask_NoResultsStillAnswers(t *testing.T) {
	t.Parallel()
	env := newTestService(t,
		&fakeEmbedder{vec: []float32{1}},
		&fakeIndex{}, // zero results
		&scriptedAnswerer{answer: answer.NoContextMessage},
		newMemLog(),
		Options{},
	)

	res, err := env.svc.Ask(context.Background(), "unknown topic", querylog.TypeText)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(res.Sources) != 0 {
		t.Errorf("sources = %d, want 0", len(res.Sources))
	}
	if len(env.gen.lastDocs) != 0 {
		t.Errorf("generator docs = %d, want 0", len(env.gen.lastDocs))
	}
	if res.Answer != answer.NoContextMessage {
		t.Errorf("answer = %q", res.Answer)
	}
}

func Test_Service_Ask_AppendFailureDoesNotBlockQuery(t *testing.T) {
	t.Parallel()
	logs := newMemLog()
	logs.appendErr = errors.New("disk full")
	env := newTestService(t,
		&fakeEmbedder{vec: []float32{1}},
		&fakeIndex{},
		&scriptedAnswerer{answer: "still works"},
		logs,
		Options{},
	)

	res, err := env.svc.Ask(context.Background(), "hours?", querylog.TypeText)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.QueryID == "" {
		t.Error("query id should be assigned even when the log append fails")
	}
	if res.Answer != "still works" {
		t.Errorf("answer = %q", res.Answer)
	}
}

func Test_NewService_Validation(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{vec: []float32{1}}
	ix := &fakeIndex{}
	gen := &scriptedAnswerer{}
	logs := newMemLog()
	reg := prometheus.NewRegistry()

	if _, err := NewService(nil, ix, gen, logs, Options{}, reg, nil); err == nil {
		t.Error("nil embedder accepted")
	}
	if _, err := NewService(emb, nil, gen, logs, Options{}, reg, nil); err == nil {
		t.Error("nil index accepted")
	}
	if _, err := NewService(emb, ix, nil, logs, Options{}, reg, nil); err == nil {
		t.Error("nil generator accepted")
	}
	if _, err := NewService(emb, ix, gen, nil, Options{}, reg, nil); err == nil {
		t.Error("nil query log accepted")
	}
}
