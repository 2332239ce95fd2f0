// Package vecindex implements rag.VectorIndex backed by a Qdrant instance.
// Every network operation runs under a shared retry policy with exponential
// backoff; input validation happens before any network call and is never
// retried. The collection is a derived cache of the document store — it can
// always be destroyed and rebuilt, so ReindexAll is cheapest-possible:
// drop and recreate.
package vecindex

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/kbase-ai/kbq-go/internal/rag"
	"github.com/kbase-ai/kbq-go/internal/retry"
)

// maxSubBatch is the largest number of points sent in one upsert or delete
// request, bounding request size against provider limits.
const maxSubBatch = 100

// payloadChunkID is the payload field carrying the caller-visible point id.
// Qdrant point ids must be UUIDs, so the string id is hashed into one and the
// original kept in the payload.
const payloadChunkID = "chunk_id"

// Reserved payload fields unpacked into SearchResult struct fields.
const (
	payloadContent = "content"
	payloadTitle   = "title"
)

// Config holds connection and collection parameters for the Qdrant index.
type Config struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// Collection is the collection name.
	Collection string

	// Dimension is the vector length every point must carry.
	Dimension uint64

	// Distance is the similarity metric: "cosine" (default), "euclid", "dot".
	Distance string

	// MaxRetries is the total attempt budget per operation (default 3).
	MaxRetries int

	// RetryDelay is the backoff base between attempts (default 1s).
	RetryDelay time.Duration
}

// api is the slice of the Qdrant client the index uses. *qdrant.Client
// satisfies it; tests substitute a recording fake.
type api interface {
	CollectionExists(ctx context.Context, collection string) (bool, error)
	CreateCollection(ctx context.Context, req *qdrant.CreateCollection) error
	DeleteCollection(ctx context.Context, collection string) error
	Upsert(ctx context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Delete(ctx context.Context, req *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Count(ctx context.Context, req *qdrant.CountPoints) (uint64, error)
	Get(ctx context.Context, req *qdrant.GetPoints) ([]*qdrant.RetrievedPoint, error)
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	CreateSnapshot(ctx context.Context, collection string) (*qdrant.SnapshotDescription, error)
	UpdateCollection(ctx context.Context, req *qdrant.UpdateCollection) error
	Close() error
}

// Index implements rag.VectorIndex over a Qdrant collection.
type Index struct {
	// api is the underlying Qdrant client surface.
	api api

	// cfg holds the resolved configuration.
	cfg Config

	// policy is the shared retry policy for network operations.
	policy retry.Policy

	// log records retries and destructive operations.
	log *slog.Logger
}

var _ rag.VectorIndex = (*Index)(nil)

// New connects to Qdrant and returns a ready Index. The collection is not
// created here — call EnsureCollection once at startup.
func New(cfg Config, log *slog.Logger) (*Index, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("vecindex: collection name is required")
	}
	if cfg.Dimension == 0 {
		return nil, fmt.Errorf("vecindex: vector dimension is required")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("vecindex: create client: %w", err)
	}

	return newWithAPI(client, cfg, log), nil
}

// newWithAPI wires an Index over an arbitrary api implementation.
func newWithAPI(a api, cfg Config, log *slog.Logger) *Index {
	if log == nil {
		log = slog.Default()
	}
	return &Index{
		api:    a,
		cfg:    cfg,
		policy: retry.NewPolicy(cfg.MaxRetries, cfg.RetryDelay),
		log:    log,
	}
}

// distance maps the configured metric name onto the Qdrant enum.
func (ix *Index) distance() qdrant.Distance {
	switch ix.cfg.Distance {
	case "", "cosine":
		return qdrant.Distance_Cosine
	case "euclid", "euclidean":
		return qdrant.Distance_Euclid
	case "dot":
		return qdrant.Distance_Dot
	default:
		return qdrant.Distance_Cosine
	}
}

// EnsureCollection creates the collection with the configured dimension and
// distance metric if it does not already exist. Idempotent.
func (ix *Index) EnsureCollection(ctx context.Context) error {
	exists, err := ix.api.CollectionExists(ctx, ix.cfg.Collection)
	if err != nil {
		return fmt.Errorf("vecindex: check collection: %w: %w", rag.ErrIndexUnavailable, err)
	}
	if exists {
		return nil
	}

	err = ix.api.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: ix.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     ix.cfg.Dimension,
			Distance: ix.distance(),
		}),
	})
	if err != nil {
		return fmt.Errorf("vecindex: create collection %q: %w: %w", ix.cfg.Collection, rag.ErrIndexUnavailable, err)
	}

	ix.log.Info("vecindex: collection created",
		slog.String("collection", ix.cfg.Collection),
		slog.Uint64("dimension", ix.cfg.Dimension),
		slog.String("distance", ix.cfg.Distance),
	)
	return nil
}

// Search returns up to opts.Limit nearest points for queryVector, sorted by
// score descending. The query vector dimension is validated before any
// network call.
func (ix *Index) Search(ctx context.Context, queryVector []float32, opts rag.SearchOptions) ([]rag.SearchResult, error) {
	if uint64(len(queryVector)) != ix.cfg.Dimension {
		return nil, fmt.Errorf("vecindex: query vector has %d dimensions, collection expects %d: %w",
			len(queryVector), ix.cfg.Dimension, rag.ErrDimensionMismatch)
	}
	if opts.Limit <= 0 {
		opts.Limit = 5
	}

	req := &qdrant.QueryPoints{
		CollectionName: ix.cfg.Collection,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          qdrant.PtrOf(uint64(opts.Limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if opts.Offset > 0 {
		req.Offset = qdrant.PtrOf(uint64(opts.Offset))
	}
	if opts.ScoreThreshold > 0 {
		// Qdrant interprets the threshold per metric (floor for cosine/dot,
		// ceiling for euclid), matching the higher-is-better assumption here.
		req.ScoreThreshold = qdrant.PtrOf(opts.ScoreThreshold)
	}
	if f := buildFilter(opts.Filter); f != nil {
		req.Filter = f
	}

	var scored []*qdrant.ScoredPoint
	err := ix.withRetry(ctx, "search", func(ctx context.Context) error {
		var err error
		scored, err = ix.api.Query(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	results := make([]rag.SearchResult, 0, len(scored))
	for _, p := range scored {
		results = append(results, fromPayload(p.Id, p.Score, p.Payload))
	}
	// Qdrant returns results ordered already; the stable re-sort keeps the
	// ordering contract independent of the backend.
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	return results, nil
}

// Upsert inserts or replaces a single point.
func (ix *Index) Upsert(ctx context.Context, point rag.VectorPoint) error {
	return ix.UpsertBatch(ctx, []rag.VectorPoint{point})
}

// UpsertBatch inserts or replaces points in sub-batches of at most 100.
// Every point must carry a vector of the collection dimension; otherwise the
// whole batch is rejected before any network call.
func (ix *Index) UpsertBatch(ctx context.Context, points []rag.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}

	// All-or-nothing pre-check: no partial writes on malformed input.
	for _, p := range points {
		if len(p.Vector) == 0 {
			return fmt.Errorf("vecindex: point %q has no vector: %w", p.ID, rag.ErrInvalidInput)
		}
		if uint64(len(p.Vector)) != ix.cfg.Dimension {
			return fmt.Errorf("vecindex: point %q has %d dimensions, collection expects %d: %w",
				p.ID, len(p.Vector), ix.cfg.Dimension, rag.ErrDimensionMismatch)
		}
	}

	for start := 0; start < len(points); start += maxSubBatch {
		end := start + maxSubBatch
		if end > len(points) {
			end = len(points)
		}

		batch := make([]*qdrant.PointStruct, 0, end-start)
		for _, p := range points[start:end] {
			payload := map[string]any{payloadChunkID: p.ID}
			for k, v := range p.Payload {
				payload[k] = v
			}
			batch = append(batch, &qdrant.PointStruct{
				Id:      pointID(p.ID),
				Vectors: qdrant.NewVectors(p.Vector...),
				Payload: qdrant.NewValueMap(payload),
			})
		}

		req := &qdrant.UpsertPoints{
			CollectionName: ix.cfg.Collection,
			Points:         batch,
		}
		err := ix.withRetry(ctx, "upsert", func(ctx context.Context) error {
			_, err := ix.api.Upsert(ctx, req)
			return err
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// Delete removes a single point by id.
func (ix *Index) Delete(ctx context.Context, id string) error {
	return ix.DeleteBatch(ctx, []string{id})
}

// DeleteBatch removes points by id in sub-batches of at most 100.
func (ix *Index) DeleteBatch(ctx context.Context, ids []string) error {
	for start := 0; start < len(ids); start += maxSubBatch {
		end := start + maxSubBatch
		if end > len(ids) {
			end = len(ids)
		}

		pointIDs := make([]*qdrant.PointId, 0, end-start)
		for _, id := range ids[start:end] {
			pointIDs = append(pointIDs, pointID(id))
		}

		req := &qdrant.DeletePoints{
			CollectionName: ix.cfg.Collection,
			Points:         qdrant.NewPointsSelector(pointIDs...),
		}
		err := ix.withRetry(ctx, "delete", func(ctx context.Context) error {
			_, err := ix.api.Delete(ctx, req)
			return err
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// Count returns the number of points matching filter (all points when nil).
func (ix *Index) Count(ctx context.Context, filter map[string]string) (uint64, error) {
	req := &qdrant.CountPoints{
		CollectionName: ix.cfg.Collection,
		Filter:         buildFilter(filter),
	}

	var n uint64
	err := ix.withRetry(ctx, "count", func(ctx context.Context) error {
		var err error
		n, err = ix.api.Count(ctx, req)
		return err
	})
	return n, err
}

// Get retrieves a single point as a SearchResult, or nil when absent.
func (ix *Index) Get(ctx context.Context, id string) (*rag.SearchResult, error) {
	req := &qdrant.GetPoints{
		CollectionName: ix.cfg.Collection,
		Ids:            []*qdrant.PointId{pointID(id)},
		WithPayload:    qdrant.NewWithPayload(true),
	}

	var found []*qdrant.RetrievedPoint
	err := ix.withRetry(ctx, "get", func(ctx context.Context) error {
		var err error
		found, err = ix.api.Get(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}

	r := fromPayload(found[0].Id, 0, found[0].Payload)
	return &r, nil
}

// ReindexAll drops the collection and recreates it empty. All points are
// lost; callers re-upsert from the document store. The caller layer is
// responsible for confirming this destructive operation.
func (ix *Index) ReindexAll(ctx context.Context) error {
	ix.log.Warn("vecindex: dropping and recreating collection",
		slog.String("collection", ix.cfg.Collection),
	)

	if err := ix.api.DeleteCollection(ctx, ix.cfg.Collection); err != nil {
		return fmt.Errorf("vecindex: drop collection %q: %w: %w", ix.cfg.Collection, rag.ErrIndexUnavailable, err)
	}
	return ix.EnsureCollection(ctx)
}

// Snapshot creates a collection snapshot on the server and returns its name.
func (ix *Index) Snapshot(ctx context.Context) (string, error) {
	var desc *qdrant.SnapshotDescription
	err := ix.withRetry(ctx, "snapshot", func(ctx context.Context) error {
		var err error
		desc, err = ix.api.CreateSnapshot(ctx, ix.cfg.Collection)
		return err
	})
	if err != nil {
		return "", err
	}
	return desc.GetName(), nil
}

// Optimize nudges the collection's optimizers to rebuild the vector index
// segments, useful after large batch ingests.
func (ix *Index) Optimize(ctx context.Context) error {
	req := &qdrant.UpdateCollection{
		CollectionName: ix.cfg.Collection,
		OptimizersConfig: &qdrant.OptimizersConfigDiff{
			IndexingThreshold: qdrant.PtrOf(uint64(0)),
		},
	}
	return ix.withRetry(ctx, "optimize", func(ctx context.Context) error {
		return ix.api.UpdateCollection(ctx, req)
	})
}

// HealthCheck reports whether the Qdrant server is reachable. It does not
// require the collection to exist.
func (ix *Index) HealthCheck(ctx context.Context) bool {
	_, err := ix.api.HealthCheck(ctx)
	return err == nil
}

// Close releases the underlying gRPC connection.
func (ix *Index) Close() error {
	return ix.api.Close()
}

// withRetry runs op under the retry policy and converts exhaustion into
// ErrIndexUnavailable, logging each failed attempt's final outcome.
func (ix *Index) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := ix.policy.Do(ctx, fn)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("vecindex: %s cancelled: %w", op, err)
	}

	ix.log.Error("vecindex: operation failed after retries",
		slog.String("operation", op),
		slog.Int("attempts", ix.policy.MaxAttempts),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("vecindex: %s failed: %w: %w", op, rag.ErrIndexUnavailable, err)
}

// buildFilter converts a payload equality map into a Qdrant must-filter.
func buildFilter(filter map[string]string) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conditions := make([]*qdrant.Condition, 0, len(keys))
	for _, k := range keys {
		conditions = append(conditions, qdrant.NewMatch(k, filter[k]))
	}
	return &qdrant.Filter{Must: conditions}
}

// pointID maps a caller-visible string id onto a deterministic Qdrant UUID.
func pointID(id string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte("kbq:"+id)).String())
}

// fromPayload unpacks a Qdrant payload into a SearchResult, restoring the
// caller-visible id from the payload.
func fromPayload(qid *qdrant.PointId, score float32, payload map[string]*qdrant.Value) rag.SearchResult {
	r := rag.SearchResult{
		ID:       qid.GetUuid(),
		Score:    score,
		Metadata: make(map[string]string),
	}
	for k, v := range payload {
		switch k {
		case payloadChunkID:
			r.ID = v.GetStringValue()
		case payloadContent:
			r.Content = v.GetStringValue()
		case payloadTitle:
			r.Title = v.GetStringValue()
		default:
			r.Metadata[k] = v.GetStringValue()
		}
	}
	return r
}
