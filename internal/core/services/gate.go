// Package services contains the core ETL pipeline logic.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/scopeworks/kbcore/internal/core/domain"
	"github.com/scopeworks/kbcore/internal/core/ports/driven"
)

// GateConfig holds the similarity gate thresholds. Bands are inclusive on
// the lower bound: score >= DuplicateThreshold classifies as duplicate,
// UpdateThreshold <= score < DuplicateThreshold as update (or
// new-with-conflict for first-sighted documents), below UpdateThreshold the
// document ingests directly.
type GateConfig struct {
	DuplicateThreshold float64
	UpdateThreshold    float64

	// TopK is the number of nearest neighbors queried per chunk
	TopK int
}

// DefaultGateConfig returns the standard thresholds
func DefaultGateConfig() GateConfig {
	return GateConfig{
		DuplicateThreshold: 0.95,
		UpdateThreshold:    0.85,
		TopK:               3,
	}
}

// SimilarityGate classifies a document's chunk vectors against the existing
// index contents and decides whether it can ingest directly or must wait for
// human approval. This is the only component that creates pending approvals.
type SimilarityGate struct {
	index    driven.VectorIndex
	registry driven.DocumentRegistry
	config   GateConfig
	logger   *slog.Logger
}

// NewSimilarityGate creates a similarity gate
func NewSimilarityGate(index driven.VectorIndex, registry driven.DocumentRegistry, config GateConfig, logger *slog.Logger) (*SimilarityGate, error) {
	if config.UpdateThreshold <= 0 || config.DuplicateThreshold <= 0 {
		return nil, fmt.Errorf("gate thresholds must be positive")
	}
	if config.UpdateThreshold > config.DuplicateThreshold {
		return nil, fmt.Errorf("update threshold %v must not exceed duplicate threshold %v",
			config.UpdateThreshold, config.DuplicateThreshold)
	}
	if config.TopK <= 0 {
		config.TopK = DefaultGateConfig().TopK
	}

	return &SimilarityGate{
		index:    index,
		registry: registry,
		config:   config,
		logger:   logger.With(slog.String("component", "similarity_gate")),
	}, nil
}

// Evaluate queries the index for each chunk vector's nearest neighbors,
// excluding the document's own points, and classifies the document by the
// maximum similarity found. isNew distinguishes a first-sighted document
// from a changed one: both hold in the update band, but the decision label
// differs. Query errors fail the evaluation; a document is never silently
// ingested past a broken index.
func (g *SimilarityGate) Evaluate(ctx context.Context, documentID string, isNew bool, vectors []domain.ChunkVector) (domain.Routing, error) {
	maxScore := 0.0
	bestPerDoc := make(map[string]domain.RelatedDocument)

	for _, v := range vectors {
		hits, err := g.index.Query(ctx, v.Vector, documentID, g.config.TopK)
		if err != nil {
			return domain.Routing{}, fmt.Errorf("similarity query for chunk %d: %w", v.Payload.ChunkIndex, err)
		}

		for _, hit := range hits {
			if hit.Score > maxScore {
				maxScore = hit.Score
			}
			owner := hit.Payload.DocumentID
			if best, ok := bestPerDoc[owner]; !ok || hit.Score > best.Score {
				bestPerDoc[owner] = domain.RelatedDocument{
					DocumentID: owner,
					FileName:   hit.Payload.FileName,
					Score:      hit.Score,
				}
			}
		}
	}

	if maxScore < g.config.UpdateThreshold {
		return domain.RoutingIngest(), nil
	}

	related := make([]domain.RelatedDocument, 0, len(bestPerDoc))
	for _, rd := range bestPerDoc {
		related = append(related, rd)
	}
	sort.Slice(related, func(i, j int) bool { return related[i].Score > related[j].Score })
	g.enrichFileNames(ctx, related)

	var decision domain.Decision
	var reason string
	switch {
	case maxScore >= g.config.DuplicateThreshold:
		decision = domain.DecisionDuplicate
		reason = fmt.Sprintf("content matches existing document with similarity %.3f (likely re-upload)", maxScore)
	case isNew:
		decision = domain.DecisionNewWithConflict
		reason = fmt.Sprintf("new document overlaps existing content with similarity %.3f", maxScore)
	default:
		decision = domain.DecisionUpdate
		reason = fmt.Sprintf("changed content resembles existing documents with similarity %.3f (likely revision)", maxScore)
	}

	g.logger.Info("document held for approval",
		slog.String("document_id", documentID),
		slog.String("decision", string(decision)),
		slog.Float64("score", maxScore),
		slog.Int("related", len(related)))

	return domain.Routing{
		Hold:     true,
		Decision: decision,
		Score:    maxScore,
		Reason:   reason,
		Related:  related,
	}, nil
}

// enrichFileNames fills in file names missing from the index payloads using
// the registry. Best effort; a registry miss leaves the payload name.
func (g *SimilarityGate) enrichFileNames(ctx context.Context, related []domain.RelatedDocument) {
	for i, rd := range related {
		if rd.FileName != "" {
			continue
		}
		doc, err := g.registry.Get(ctx, rd.DocumentID)
		if err != nil {
			continue
		}
		related[i].FileName = doc.FileName
	}
}
