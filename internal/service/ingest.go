// Package service implements the ingestion and retrieval pipelines of the
// memory engine.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/reverie-ai/reverie/internal/characters"
	"github.com/reverie-ai/reverie/internal/embedding"
	"github.com/reverie-ai/reverie/internal/llm"
	"github.com/reverie-ai/reverie/internal/metrics"
	"github.com/reverie-ai/reverie/internal/models"
	"github.com/reverie-ai/reverie/internal/parser"
	"github.com/reverie-ai/reverie/internal/store"
)

// IngestService turns character biographies into embedded memory chunks.
type IngestService struct {
	source      characters.Source
	embedder    embedding.Embedder
	store       store.Store
	model       *llm.Model
	locks       *CharacterLocks
	metrics     *metrics.Collector
	chunkCfg    parser.ChunkConfig
	concurrency int
}

// NewIngestService creates a new ingestion service. A nil model disables
// provider-assisted persona condensation; a nil collector gets replaced by
// a private one.
func NewIngestService(
	source characters.Source,
	embedder embedding.Embedder,
	st store.Store,
	model *llm.Model,
	locks *CharacterLocks,
	collector *metrics.Collector,
	concurrency int,
) *IngestService {
	if concurrency <= 0 {
		concurrency = 4
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	if locks == nil {
		locks = NewCharacterLocks()
	}
	return &IngestService{
		source:      source,
		embedder:    embedder,
		store:       st,
		model:       model,
		locks:       locks,
		metrics:     collector,
		chunkCfg:    parser.DefaultChunkConfig(),
		concurrency: concurrency,
	}
}

// Ingest rebuilds one character's biography memory: it reassembles the full
// bio, regenerates the persona summary, chunks and embeds the bio, and
// atomically replaces the character's bio chunks in the store. Readers
// observe the old chunk set or the new one, never a mix.
func (s *IngestService) Ingest(ctx context.Context, characterID string) (*models.IngestStats, error) {
	start := time.Now()
	stats, err := s.ingest(ctx, characterID)
	s.metrics.Record(metrics.OpIngestCharacter, time.Since(start), err)
	return stats, err
}

func (s *IngestService) ingest(ctx context.Context, characterID string) (*models.IngestStats, error) {
	ch, err := s.source.Get(ctx, characterID)
	if err != nil {
		return nil, err
	}

	ch.FullBio = BuildFullBio(ch)
	persona := s.condensePersona(ctx, ch)
	ch.CorePersonaSummary = persona

	texts := parser.SplitAll(ch.FullBio, s.chunkCfg)
	vectors, err := s.embedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed biography for %s: %w", ch.ID, err)
	}

	now := time.Now().UTC()
	chunks := make([]models.MemoryChunk, 0, len(texts))
	for i, text := range texts {
		if vectors[i] == nil {
			continue
		}
		chunks = append(chunks, models.MemoryChunk{
			ID:              uuid.New().String(),
			CharacterID:     ch.ID,
			Content:         text,
			MemoryType:      models.MemoryTypeBio,
			Embedding:       vectors[i],
			EmotionalWeight: 0.5,
			Importance:      models.ImportanceHigh,
			CreatedAt:       now,
		})
	}

	if err := s.replaceBioChunks(ctx, ch.ID, chunks); err != nil {
		return nil, err
	}

	if err := s.source.SavePersona(ctx, ch.ID, persona); err != nil {
		return nil, fmt.Errorf("persist persona for %s: %w", ch.ID, err)
	}

	slog.Info("character ingested", "character", ch.ID, "chunks", len(chunks))
	return &models.IngestStats{
		ChunksCreated:    len(chunks),
		PersonaGenerated: persona != "",
	}, nil
}

// embedTexts embeds every text, falling back to per-text calls when the
// batch fails so one bad input drops only itself. The returned slice is
// aligned with texts; a nil vector marks a skipped input. Errors out only
// when nothing embedded at all, since replacing the stored bio with an
// empty set over a provider outage would destroy data.
func (s *IngestService) embedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	start := time.Now()
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	s.metrics.Record(metrics.OpEmbedBatch, time.Since(start), err)
	if err == nil {
		return vectors, nil
	}
	slog.Warn("batch embedding failed, retrying chunks individually",
		"chunks", len(texts), "error", err)

	vectors = make([][]float32, len(texts))
	var lastErr error
	succeeded := 0
	for i, text := range texts {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		start := time.Now()
		vec, err := s.embedder.Embed(ctx, text)
		s.metrics.Record(metrics.OpEmbed, time.Since(start), err)
		if err != nil {
			lastErr = err
			slog.Warn("skipping chunk that failed to embed", "chunk", i, "error", err)
			continue
		}
		vectors[i] = vec
		succeeded++
	}
	if succeeded == 0 {
		return nil, lastErr
	}
	return vectors, nil
}

// replaceBioChunks swaps a character's bio chunks for the given set under
// the character's write lock.
func (s *IngestService) replaceBioChunks(ctx context.Context, characterID string, chunks []models.MemoryChunk) error {
	lock := s.locks.Get(characterID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	err := s.replaceLocked(ctx, characterID, chunks)
	s.metrics.Record(metrics.OpStoreWrite, time.Since(start), err)
	return err
}

func (s *IngestService) replaceLocked(ctx context.Context, characterID string, chunks []models.MemoryChunk) error {
	if _, err := s.store.DeleteByOwnerAndType(ctx, characterID, models.MemoryTypeBio); err != nil {
		return fmt.Errorf("clear bio chunks for %s: %w", characterID, err)
	}
	if len(chunks) == 0 {
		return nil
	}
	if err := s.store.UpsertMany(ctx, chunks); err != nil {
		return fmt.Errorf("store bio chunks for %s: %w", characterID, err)
	}
	return nil
}

// IngestAll ingests every character the source knows about. One character's
// failure is recorded in its result and never aborts the batch.
func (s *IngestService) IngestAll(ctx context.Context) ([]models.CharacterResult, error) {
	chars, err := s.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	return s.ingestMany(ctx, chars, nil), nil
}

// ingestMany runs the bounded worker pool over characters. Results align
// with the input order. onProgress, when set, is called after each finished
// character.
func (s *IngestService) ingestMany(ctx context.Context, chars []models.Character, onProgress func(done, total int)) []models.CharacterResult {
	if len(chars) == 0 {
		return nil
	}

	work := make(chan int, len(chars))
	for i := range chars {
		work <- i
	}
	close(work)

	results := make([]models.CharacterResult, len(chars))
	var completed atomic.Int32
	var wg sync.WaitGroup

	for w := 0; w < s.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				result := models.CharacterResult{
					CharacterID: chars[i].ID,
					Name:        chars[i].Name,
				}
				if err := ctx.Err(); err != nil {
					result.Error = err.Error()
					results[i] = result
					continue
				}

				stats, err := s.Ingest(ctx, chars[i].ID)
				if err != nil {
					result.Error = err.Error()
					slog.Warn("character ingestion failed", "character", chars[i].ID, "error", err)
				} else {
					result.Stats = stats
				}
				results[i] = result

				if onProgress != nil {
					onProgress(int(completed.Add(1)), len(chars))
				}
			}
		}()
	}
	wg.Wait()

	return results
}

// IngestAsync starts a background ingestion of one character and returns
// the tracking job. The character is resolved upfront so a bad ID fails
// fast instead of failing the job.
func (s *IngestService) IngestAsync(ctx context.Context, jobs *JobManager, characterID string) (*Job, error) {
	ch, err := s.source.Get(ctx, characterID)
	if err != nil {
		return nil, err
	}

	job := jobs.CreateJob(JobTypeIngest, []string{ch.ID})

	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("ingestion job panicked", "job_id", job.ID, "panic", r)
				jobs.Fail(job, fmt.Errorf("internal panic: %v", r))
			}
		}()

		// The request context dies with the HTTP response; the job must not.
		bgCtx := context.Background()
		jobs.SetRunning(job)

		stats, err := s.Ingest(bgCtx, ch.ID)
		if err != nil {
			jobs.Fail(job, err)
			return
		}
		jobs.Complete(job, []models.CharacterResult{{
			CharacterID: ch.ID,
			Name:        ch.Name,
			Stats:       stats,
		}})
	}()

	return job, nil
}

// IngestAllAsync starts a background ingestion of every character and
// returns the tracking job.
func (s *IngestService) IngestAllAsync(ctx context.Context, jobs *JobManager) (*Job, error) {
	chars, err := s.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}

	ids := make([]string, len(chars))
	for i, ch := range chars {
		ids[i] = ch.ID
	}
	job := jobs.CreateJob(JobTypeIngestAll, ids)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("ingestion job panicked", "job_id", job.ID, "panic", r)
				jobs.Fail(job, fmt.Errorf("internal panic: %v", r))
			}
		}()

		bgCtx := context.Background()
		jobs.SetRunning(job)

		results := s.ingestMany(bgCtx, chars, func(done, total int) {
			jobs.UpdateProgress(job, done, total)
		})
		jobs.Complete(job, results)
	}()

	return job, nil
}

// Health probes the ingestion dependencies.
func (s *IngestService) Health(ctx context.Context) []ComponentHealth {
	return []ComponentHealth{
		probe(ctx, "embedder", s.embedder.Health),
		probe(ctx, "store", s.store.Health),
		probe(ctx, "characters", s.source.Health),
	}
}
