package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/scopeworks/kbcore/internal/chunker"
	"github.com/scopeworks/kbcore/internal/core/domain"
	"github.com/scopeworks/kbcore/internal/core/ports/driven"
	"github.com/scopeworks/kbcore/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.ScanService = (*ScanOrchestrator)(nil)

// pointNamespace is the UUIDv5 namespace for chunk point IDs. Point IDs are
// deterministic in (document ID, chunk ordinal) so re-vectorizing a document
// overwrites its points instead of duplicating them.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("kbcore.scopeworks.dev"))

// scanLockName is the distributed lock guarding cross-instance scans
const scanLockName = "etl-scan"

// OrchestratorConfig configures the scan orchestrator
type OrchestratorConfig struct {
	// Concurrency bounds how many documents process in parallel per scan
	Concurrency int

	// ScanTimeout bounds the total duration of one scan
	ScanTimeout time.Duration

	// SlowScanWarning flags scans running longer than expected
	SlowScanWarning time.Duration
}

// DefaultOrchestratorConfig returns sensible defaults
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		Concurrency:     4,
		ScanTimeout:     30 * time.Minute,
		SlowScanWarning: 10 * time.Minute,
	}
}

// ScanOrchestrator is the top-level ETL control loop: it lists the document
// store, diffs content hashes against the registry and drives each new or
// changed document through extract, chunk, embed and the similarity gate.
// At most one scan runs at a time; concurrent triggers are rejected.
type ScanOrchestrator struct {
	store      driven.DocumentStore
	registry   driven.DocumentRegistry
	jobs       driven.JobStore
	approvals  driven.ApprovalStore
	index      driven.VectorIndex
	embedder   driven.EmbeddingService
	extractors driven.ExtractorRegistry
	chunker    *chunker.Chunker
	gate       *SimilarityGate
	lock       driven.DistributedLock // nil in single-instance deployments
	config     OrchestratorConfig
	logger     *slog.Logger

	mu        sync.Mutex
	scanning  bool
	startedAt time.Time
	lastRun   *domain.ScanSummary
	lastErr   string
}

// NewScanOrchestrator creates a scan orchestrator. lock may be nil when no
// cross-instance coordination is needed.
func NewScanOrchestrator(
	store driven.DocumentStore,
	registry driven.DocumentRegistry,
	jobs driven.JobStore,
	approvals driven.ApprovalStore,
	index driven.VectorIndex,
	embedder driven.EmbeddingService,
	extractors driven.ExtractorRegistry,
	chk *chunker.Chunker,
	gate *SimilarityGate,
	lock driven.DistributedLock,
	config OrchestratorConfig,
	logger *slog.Logger,
) *ScanOrchestrator {
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultOrchestratorConfig().Concurrency
	}
	if config.ScanTimeout <= 0 {
		config.ScanTimeout = DefaultOrchestratorConfig().ScanTimeout
	}

	return &ScanOrchestrator{
		store:      store,
		registry:   registry,
		jobs:       jobs,
		approvals:  approvals,
		index:      index,
		embedder:   embedder,
		extractors: extractors,
		chunker:    chk,
		gate:       gate,
		lock:       lock,
		config:     config,
		logger:     logger.With(slog.String("component", "scan_orchestrator")),
	}
}

// TriggerScan starts a scan in the background and returns immediately.
// Returns domain.ErrScanInProgress when a scan is already running, in this
// instance or (when a distributed lock is configured) in any instance.
func (o *ScanOrchestrator) TriggerScan(ctx context.Context) error {
	o.mu.Lock()
	if o.scanning {
		o.mu.Unlock()
		return domain.ErrScanInProgress
	}
	o.scanning = true
	o.startedAt = time.Now().UTC()
	o.mu.Unlock()

	if o.lock != nil {
		acquired, err := o.lock.Acquire(ctx, scanLockName, o.config.ScanTimeout)
		if err != nil {
			o.finishScan(nil, fmt.Errorf("acquire scan lock: %w", err))
			return fmt.Errorf("acquire scan lock: %w", err)
		}
		if !acquired {
			o.mu.Lock()
			o.scanning = false
			o.mu.Unlock()
			return domain.ErrScanInProgress
		}
	}

	// The scan outlives the triggering request.
	scanCtx, cancel := context.WithTimeout(context.Background(), o.config.ScanTimeout)
	go func() {
		defer cancel()
		summary, err := o.scan(scanCtx)
		if o.lock != nil {
			if relErr := o.lock.Release(context.Background(), scanLockName); relErr != nil {
				o.logger.Warn("failed to release scan lock", slog.String("error", relErr.Error()))
			}
		}
		o.finishScan(summary, err)
	}()

	return nil
}

func (o *ScanOrchestrator) finishScan(summary *domain.ScanSummary, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scanning = false
	o.lastErr = ""
	if summary != nil {
		o.lastRun = summary
	}
	if err != nil {
		o.lastErr = err.Error()
	}
}

// Status reports whether a scan is running and the last outcome
func (o *ScanOrchestrator) Status() domain.ScanStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	status := domain.ScanStatus{
		IsScanning: o.scanning,
		LastError:  o.lastErr,
	}
	if o.scanning {
		started := o.startedAt
		status.StartedAt = &started
	}
	if o.lastRun != nil {
		summary := *o.lastRun
		status.LastSummary = &summary
	}
	return status
}

// scanCounters accumulates the summary across concurrent document pipelines
type scanCounters struct {
	mu      sync.Mutex
	summary domain.ScanSummary
}

func (c *scanCounters) add(apply func(*domain.ScanSummary)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	apply(&c.summary)
}

// scan runs one full pass over the document store. One document's failure
// never aborts the others; each outcome lands on its own processing job.
func (o *ScanOrchestrator) scan(ctx context.Context) (*domain.ScanSummary, error) {
	start := time.Now()
	o.logger.Info("scan started")

	files, err := o.store.List(ctx, "")
	if err != nil {
		o.logger.Error("scan failed to list documents", slog.String("error", err.Error()))
		return nil, fmt.Errorf("list documents: %w", err)
	}

	counters := &scanCounters{}
	counters.summary.Scanned = len(files)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.Concurrency)
	for _, file := range files {
		g.Go(func() error {
			o.processFile(gctx, file, counters)
			return nil // isolation: per-document failures are counted, not propagated
		})
	}
	_ = g.Wait()

	elapsed := time.Since(start)
	summary := counters.summary
	o.logger.Info("scan finished",
		slog.Int("scanned", summary.Scanned),
		slog.Int("new", summary.New),
		slog.Int("updated", summary.Updated),
		slog.Int("unchanged", summary.Unchanged),
		slog.Int("failed", summary.Failed),
		slog.Int("queued_for_approval", summary.QueuedForApproval),
		slog.Duration("elapsed", elapsed))
	if o.config.SlowScanWarning > 0 && elapsed > o.config.SlowScanWarning {
		o.logger.Warn("scan ran unexpectedly long", slog.Duration("elapsed", elapsed))
	}

	return &summary, ctx.Err()
}

// processFile classifies one file against the registry and, when new or
// changed, runs the full pipeline for it.
func (o *ScanOrchestrator) processFile(ctx context.Context, file domain.FileInfo, counters *scanCounters) {
	logger := o.logger.With(slog.String("path", file.Path))

	data, err := o.store.Read(ctx, file.Path)
	if err != nil {
		logger.Error("failed to read document", slog.String("error", err.Error()))
		counters.add(func(s *domain.ScanSummary) { s.Failed++ })
		return
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	now := time.Now().UTC()

	isNew := false
	doc, err := o.registry.GetByPath(ctx, file.Path)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		isNew = true
		doc = &domain.SourceDocument{
			ID:          domain.GenerateID(),
			FileName:    file.Name,
			StoragePath: file.Path,
			ByteSize:    file.Size,
			UploadedAt:  now,
		}
	case err != nil:
		logger.Error("registry lookup failed", slog.String("error", err.Error()))
		counters.add(func(s *domain.ScanSummary) { s.Failed++ })
		return
	}

	// An empty stored hash means the document was reset and must be
	// treated as changed regardless of its current content.
	changed := !isNew && doc.ContentHash != hash

	if !isNew && !changed {
		// Unchanged hash but not vectorized and not awaiting approval:
		// a previous run crashed or failed between embedding and the
		// registry update. Re-run the document.
		if !doc.Vectorized && !o.hasPendingApproval(ctx, doc.ID) {
			logger.Info("recovering unvectorized document")
			o.runPipeline(ctx, doc, data, hash, false, counters)
			return
		}
		doc.LastChecked = &now
		if err := o.registry.Save(ctx, doc); err != nil {
			logger.Warn("failed to update last-checked", slog.String("error", err.Error()))
		}
		counters.add(func(s *domain.ScanSummary) { s.Unchanged++ })
		return
	}

	doc.ByteSize = file.Size
	o.runPipeline(ctx, doc, data, hash, isNew, counters)
}

func (o *ScanOrchestrator) hasPendingApproval(ctx context.Context, documentID string) bool {
	_, err := o.approvals.GetPendingByDocument(ctx, documentID)
	return err == nil
}

// supersedePendingApproval resolves a leftover pending entry after a direct
// commit. Without this, approving the stale entry later would overwrite the
// freshly committed vectors with the old held content under the same point
// IDs while the registry hash still describes the new content.
func (o *ScanOrchestrator) supersedePendingApproval(ctx context.Context, documentID string, logger *slog.Logger) {
	pending, err := o.approvals.GetPendingByDocument(ctx, documentID)
	if errors.Is(err, domain.ErrNotFound) {
		return
	}
	if err != nil {
		logger.Warn("pending approval lookup failed", slog.String("error", err.Error()))
		return
	}

	err = o.approvals.Resolve(ctx, pending.ID, domain.ApprovalStatusRejected, "system",
		"superseded: a newer version of the document was ingested directly")
	if err != nil && !errors.Is(err, domain.ErrAlreadyResolved) {
		logger.Warn("failed to supersede pending approval",
			slog.String("approval_id", pending.ID), slog.String("error", err.Error()))
		return
	}
	logger.Info("superseded stale pending approval", slog.String("approval_id", pending.ID))
}

// runPipeline drives one document through extract, chunk, embed and the
// gate, recording the outcome on a processing job. The registry hash is only
// advanced on success, so a failed document stays "changed" and retries on
// the next scan.
func (o *ScanOrchestrator) runPipeline(ctx context.Context, doc *domain.SourceDocument, data []byte, hash string, isNew bool, counters *scanCounters) {
	logger := o.logger.With(slog.String("document_id", doc.ID), slog.String("file", doc.FileName))

	// New documents must exist in the registry before the job row
	// references them, but without the new hash yet.
	if isNew {
		if err := o.registry.Save(ctx, doc); err != nil {
			logger.Error("failed to register document", slog.String("error", err.Error()))
			counters.add(func(s *domain.ScanSummary) { s.Failed++ })
			return
		}
	}

	job := domain.NewProcessingJob(doc.ID)
	if err := o.jobs.Create(ctx, job); err != nil {
		logger.Error("failed to create job", slog.String("error", err.Error()))
		counters.add(func(s *domain.ScanSummary) { s.Failed++ })
		return
	}
	if err := o.jobs.MarkProcessing(ctx, job.ID); err != nil {
		logger.Error("failed to start job", slog.String("error", err.Error()))
		counters.add(func(s *domain.ScanSummary) { s.Failed++ })
		return
	}

	fail := func(err error) {
		logger.Error("document processing failed", slog.String("error", err.Error()))
		if markErr := o.jobs.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			logger.Error("failed to mark job failed", slog.String("error", markErr.Error()))
		}
		counters.add(func(s *domain.ScanSummary) { s.Failed++ })
	}

	vectors, err := o.vectorize(ctx, doc, data)
	if err != nil {
		fail(err)
		return
	}

	routing, err := o.gate.Evaluate(ctx, doc.ID, isNew, vectors)
	if err != nil {
		fail(fmt.Errorf("similarity gate: %w", err))
		return
	}

	now := time.Now().UTC()
	doc.LastChecked = &now

	if routing.Hold {
		// Held documents park their vectors on the approval entry; the
		// index and the registry's vectorization state stay untouched
		// until a human approves. Holding is not a job failure.
		approval := &domain.PendingApproval{
			ID:          domain.GenerateID(),
			DocumentID:  doc.ID,
			Decision:    routing.Decision,
			Score:       routing.Score,
			Reason:      routing.Reason,
			Related:     routing.Related,
			HeldVectors: vectors,
			Status:      domain.ApprovalStatusPending,
			CreatedAt:   now,
		}
		if err := o.approvals.Upsert(ctx, approval); err != nil {
			fail(fmt.Errorf("queue approval: %w", err))
			return
		}
		doc.ContentHash = hash
		if err := o.registry.Save(ctx, doc); err != nil {
			fail(fmt.Errorf("update registry: %w", err))
			return
		}
		if err := o.jobs.MarkCompleted(ctx, job.ID, len(vectors), 0); err != nil {
			logger.Error("failed to complete job", slog.String("error", err.Error()))
		}
		counters.add(func(s *domain.ScanSummary) {
			s.QueuedForApproval++
			if isNew {
				s.New++
			} else {
				s.Updated++
			}
		})
		logger.Info("document queued for approval",
			slog.String("decision", string(routing.Decision)),
			slog.Float64("score", routing.Score))
		return
	}

	if err := o.commitVectors(ctx, doc, vectors, hash); err != nil {
		fail(err)
		return
	}
	// The committed content is now authoritative; a hold left over from an
	// older version of this document must not overwrite it on approval.
	o.supersedePendingApproval(ctx, doc.ID, logger)
	if err := o.jobs.MarkCompleted(ctx, job.ID, len(vectors), len(vectors)); err != nil {
		logger.Error("failed to complete job", slog.String("error", err.Error()))
	}

	counters.add(func(s *domain.ScanSummary) {
		if isNew {
			s.New++
		} else {
			s.Updated++
		}
	})
	logger.Info("document vectorized", slog.Int("vectors", len(vectors)))
}

// vectorize runs extract -> chunk -> embed and assembles chunk vectors with
// deterministic point IDs. The embedder's output dimension is checked
// against the index's configured dimension on every vector; a mismatch is
// fatal and never padded or truncated away.
func (o *ScanOrchestrator) vectorize(ctx context.Context, doc *domain.SourceDocument, data []byte) ([]domain.ChunkVector, error) {
	text, err := o.extractors.Extract(ctx, data, doc.FileName)
	if err != nil {
		return nil, err
	}

	chunks, err := o.chunker.Chunk(doc.ID, text)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	embeddings, err := o.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingFailed, err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d chunks",
			domain.ErrEmbeddingFailed, len(embeddings), len(chunks))
	}

	want := o.embedder.Dimensions()
	now := time.Now().UTC()
	vectors := make([]domain.ChunkVector, len(chunks))
	for i, c := range chunks {
		if len(embeddings[i]) != want {
			return nil, &domain.DimensionMismatchError{Want: want, Got: len(embeddings[i])}
		}
		vectors[i] = domain.ChunkVector{
			PointID: PointID(doc.ID, c.Ordinal),
			Vector:  embeddings[i],
			Payload: domain.VectorPayload{
				DocumentID: doc.ID,
				FileName:   doc.FileName,
				ChunkIndex: c.Ordinal,
				Content:    c.Preview,
				CreatedAt:  now,
			},
		}
	}
	return vectors, nil
}

// commitVectors replaces the document's index contents and advances the
// registry. Old vectors are deleted first so a re-vectorization with fewer
// chunks leaves no orphans; the registry update lands only after the index
// write, so a crash in between is caught by the recovery check next scan.
func (o *ScanOrchestrator) commitVectors(ctx context.Context, doc *domain.SourceDocument, vectors []domain.ChunkVector, hash string) error {
	if err := o.index.DeleteByDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("delete previous vectors: %w", err)
	}
	if err := o.index.Upsert(ctx, vectors); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}

	ids := make([]string, len(vectors))
	for i, v := range vectors {
		ids[i] = v.PointID
	}

	now := time.Now().UTC()
	doc.ContentHash = hash
	doc.Vectorized = true
	doc.VectorCount = len(vectors)
	doc.VectorIDs = ids
	doc.VectorizedAt = &now
	doc.LastChecked = &now

	if err := o.registry.Save(ctx, doc); err != nil {
		return fmt.Errorf("update registry: %w", err)
	}
	return nil
}

// ResetFailed clears documents whose latest job failed back to an
// unprocessed state, forcing the next scan to treat them as changed.
func (o *ScanOrchestrator) ResetFailed(ctx context.Context) (int, error) {
	ids, err := o.jobs.LatestFailedDocumentIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("find failed documents: %w", err)
	}

	reset := 0
	for _, id := range ids {
		doc, err := o.registry.Get(ctx, id)
		if err != nil {
			o.logger.Warn("reset-failed: document lookup failed",
				slog.String("document_id", id), slog.String("error", err.Error()))
			continue
		}

		doc.ContentHash = ""
		doc.Vectorized = false
		doc.VectorCount = 0
		doc.VectorIDs = nil
		doc.VectorizedAt = nil

		if err := o.registry.Save(ctx, doc); err != nil {
			o.logger.Warn("reset-failed: registry update failed",
				slog.String("document_id", id), slog.String("error", err.Error()))
			continue
		}
		reset++
	}

	o.logger.Info("reset failed documents", slog.Int("count", reset))
	return reset, nil
}

// PointID derives the deterministic vector point ID for a chunk
func PointID(documentID string, ordinal int) string {
	return uuid.NewSHA1(pointNamespace, []byte(fmt.Sprintf("%s:%d", documentID, ordinal))).String()
}
