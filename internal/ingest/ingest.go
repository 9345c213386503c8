// Package ingest turns uploaded documents into indexed chunks. It wires the
// extractor router, the chunker, an embedder and a vector index into a single
// pipeline that the upload handler drives.
package ingest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docchat/internal/chunker"
	"github.com/fyrsmithlabs/docchat/internal/embeddings"
	"github.com/fyrsmithlabs/docchat/internal/extract"
	"github.com/fyrsmithlabs/docchat/internal/vectorstore"
)

var (
	// ErrNilDependency indicates the pipeline was constructed without one of
	// its required collaborators.
	ErrNilDependency = errors.New("ingest: nil dependency")
)

// Result reports what a single ingestion produced.
type Result struct {
	// ChunkCount is the number of chunks written to the index. Zero means
	// the document yielded no indexable text.
	ChunkCount int

	// Extractor names the extraction procedure that handled the file.
	Extractor string
}

// Pipeline extracts, chunks, embeds and indexes one document at a time.
type Pipeline struct {
	router   *extract.Router
	chunker  *chunker.Chunker
	embedder embeddings.Embedder
	index    vectorstore.Index
	logger   *zap.Logger
}

// NewPipeline wires the ingestion stages together. All four collaborators are
// required.
func NewPipeline(router *extract.Router, ch *chunker.Chunker, embedder embeddings.Embedder, index vectorstore.Index, logger *zap.Logger) (*Pipeline, error) {
	if router == nil || ch == nil || embedder == nil || index == nil {
		return nil, ErrNilDependency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		router:   router,
		chunker:  ch,
		embedder: embedder,
		index:    index,
		logger:   logger,
	}, nil
}

// Ingest runs the full pipeline for the file at path. ext selects the
// extractor and sourceName is the logical document name recorded in chunk
// metadata and ids. A document whose extraction yields no text returns a zero
// ChunkCount without touching the index; extraction failures are treated the
// same way since the router reports them as empty results.
func (p *Pipeline) Ingest(ctx context.Context, path, ext, sourceName string) (*Result, error) {
	res := p.router.Extract(ctx, path, ext)
	if res.Failure != nil {
		p.logger.Warn("extraction failed, skipping document",
			zap.String("source", sourceName),
			zap.String("extractor", res.Extractor),
			zap.Error(res.Failure))
	}
	if strings.TrimSpace(res.Text) == "" {
		return &Result{ChunkCount: 0, Extractor: res.Extractor}, nil
	}

	chunks := p.chunker.Split(res.Text)
	kept := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return &Result{ChunkCount: 0, Extractor: res.Extractor}, nil
	}

	vectors, err := p.embedder.EmbedDocuments(ctx, kept)
	if err != nil {
		return nil, fmt.Errorf("embed %q: %w", sourceName, err)
	}
	if len(vectors) != len(kept) {
		return nil, fmt.Errorf("embed %q: got %d vectors for %d chunks", sourceName, len(vectors), len(kept))
	}

	prefix := sourceHash(sourceName)
	entries := make([]vectorstore.Entry, len(kept))
	for i, text := range kept {
		entries[i] = vectorstore.Entry{
			ID:     chunkID(prefix, i),
			Vector: vectors[i],
			Text:   text,
			Metadata: map[string]string{
				"source": sourceName,
				"chunk":  strconv.Itoa(i),
			},
		}
	}

	if err := p.index.Add(ctx, entries); err != nil {
		return nil, fmt.Errorf("index %q: %w", sourceName, err)
	}

	p.logger.Info("document ingested",
		zap.String("source", sourceName),
		zap.String("extractor", res.Extractor),
		zap.Int("chunks", len(entries)))
	return &Result{ChunkCount: len(entries), Extractor: res.Extractor}, nil
}

func sourceHash(sourceName string) string {
	sum := sha1.Sum([]byte(sourceName))
	return hex.EncodeToString(sum[:])
}

// chunkID is <sha1(source)>_<ordinal>_<random8>. The random suffix keeps
// re-uploads of the same file from colliding with existing ids.
func chunkID(prefix string, ordinal int) string {
	u := uuid.New()
	return fmt.Sprintf("%s_%d_%s", prefix, ordinal, hex.EncodeToString(u[:4]))
}
