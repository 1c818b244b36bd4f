package service

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reverie-ai/reverie/internal/characters"
	"github.com/reverie-ai/reverie/internal/embedding"
	"github.com/reverie-ai/reverie/internal/metrics"
	"github.com/reverie-ai/reverie/internal/models"
	"github.com/reverie-ai/reverie/internal/store"
)

const (
	// overFetch widens the store lookup so the result budget can still be
	// filled after the similarity floor drops candidates.
	overFetch = 3

	// recencyFloor is where the recency boost bottoms out: old memories
	// fade, they never disappear from ranking.
	recencyFloor = 0.8

	// emotionalSlope scales how strongly emotional weight lifts a
	// memory's composite score.
	emotionalSlope = 0.5
)

// Retention weights for pruning. Emotionally loaded, important, recent
// memories survive longest.
const (
	retainEmotional  = 0.45
	retainImportance = 0.25
	retainRecency    = 0.30
)

// RetrievalOptions are the service-wide retrieval defaults. Per-call
// QueryOptions are merged on top.
type RetrievalOptions struct {
	// MinSimilarity excludes candidates below this raw cosine similarity.
	// The floor applies before boosts: boosts reorder eligible memories
	// but never rescue one.
	MinSimilarity float64

	// MaxResults caps how many memories a context may carry.
	MaxResults int

	// MemoryCap bounds conversation memories per character; pruning
	// evicts the least retained beyond it. Bio chunks are exempt.
	MemoryCap int

	// RecencyHalflife is the time constant of recency decay, for both
	// ranking and retention.
	RecencyHalflife time.Duration

	// WeightEmotional lifts emotionally loaded memories in ranking.
	WeightEmotional bool

	// BoostRecent prefers fresh memories over stale ones in ranking.
	BoostRecent bool
}

// DefaultRetrievalOptions returns the documented defaults.
func DefaultRetrievalOptions() RetrievalOptions {
	return RetrievalOptions{
		MinSimilarity:   0.65,
		MaxResults:      3,
		MemoryCap:       200,
		RecencyHalflife: 168 * time.Hour,
		WeightEmotional: true,
		BoostRecent:     true,
	}
}

// RetrievalService serves per-turn dialogue context and writes observed
// conversation turns back into character memory.
type RetrievalService struct {
	source   characters.Source
	embedder embedding.Embedder
	store    store.Store
	locks    *CharacterLocks
	metrics  *metrics.Collector
	opts     RetrievalOptions
}

// NewRetrievalService creates a new retrieval service. Pass the same
// CharacterLocks as the ingestion service so bio replacement and memory
// write-back serialize per character.
func NewRetrievalService(
	source characters.Source,
	embedder embedding.Embedder,
	st store.Store,
	locks *CharacterLocks,
	collector *metrics.Collector,
	opts RetrievalOptions,
) *RetrievalService {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 3
	}
	if opts.MemoryCap <= 0 {
		opts.MemoryCap = 200
	}
	if opts.RecencyHalflife <= 0 {
		opts.RecencyHalflife = 168 * time.Hour
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	if locks == nil {
		locks = NewCharacterLocks()
	}
	return &RetrievalService{
		source:   source,
		embedder: embedder,
		store:    st,
		locks:    locks,
		metrics:  collector,
		opts:     opts,
	}
}

// GetContext assembles the dialogue context for one user message: the
// character's persona summary plus the most relevant memories. Retrieval
// failures degrade to a persona-only context rather than erroring; an
// unknown character is the one fatal case.
func (s *RetrievalService) GetContext(ctx context.Context, characterID, userMessage string, opts *models.QueryOptions) (*models.RetrievalContext, error) {
	start := time.Now()
	rc, err := s.getContext(ctx, characterID, userMessage, opts)
	s.metrics.Record(metrics.OpRetrieve, time.Since(start), err)
	return rc, err
}

func (s *RetrievalService) getContext(ctx context.Context, characterID, userMessage string, opts *models.QueryOptions) (*models.RetrievalContext, error) {
	ch, err := s.source.Get(ctx, characterID)
	if err != nil {
		return nil, err
	}

	rc := &models.RetrievalContext{
		CorePersona:      ch.CorePersonaSummary,
		RelevantMemories: []models.RetrievedMemory{},
	}

	if strings.TrimSpace(userMessage) == "" {
		return rc, nil
	}

	eff := s.effective(opts)

	vector, err := s.embed(ctx, userMessage)
	if err != nil {
		slog.Warn("message embedding failed, returning persona-only context",
			"character", characterID, "error", err)
		return rc, nil
	}

	lock := s.locks.Get(characterID)
	lock.RLock()
	candidates, err := s.queryTopK(ctx, characterID, vector, overFetch*eff.MaxResults)
	lock.RUnlock()
	if err != nil {
		slog.Warn("memory lookup failed, returning persona-only context",
			"character", characterID, "error", err)
		return rc, nil
	}

	for _, c := range rankMemories(candidates, eff, time.Now()) {
		rc.RelevantMemories = append(rc.RelevantMemories, models.RetrievedMemory{
			Content:    c.Content,
			MemoryType: c.MemoryType,
		})
	}
	return rc, nil
}

// RecordConversationMemory writes one observed conversation turn back into
// the character's memory and prunes past the cap. The embedding happens
// before anything is committed, so cancellation or a provider failure never
// leaves a half-written chunk. Store failures after a successful embed are
// logged and swallowed; losing one memory must not break the dialogue.
func (s *RetrievalService) RecordConversationMemory(ctx context.Context, characterID, content string, meta models.MemoryMeta) error {
	start := time.Now()
	err := s.record(ctx, characterID, content, meta)
	s.metrics.Record(metrics.OpRecord, time.Since(start), err)
	return err
}

func (s *RetrievalService) record(ctx context.Context, characterID, content string, meta models.MemoryMeta) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	if _, err := s.source.Get(ctx, characterID); err != nil {
		return err
	}

	vector, err := s.embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed memory for %s: %w", characterID, err)
	}

	weight := 0.5
	if meta.EmotionalWeight != nil {
		weight = min(1, max(0, *meta.EmotionalWeight))
	}
	chunk := models.MemoryChunk{
		ID:              uuid.New().String(),
		CharacterID:     characterID,
		Content:         content,
		MemoryType:      models.MemoryTypeConversation,
		Embedding:       vector,
		EmotionalWeight: weight,
		Importance:      models.ParseImportance(string(meta.Importance)),
		CreatedAt:       time.Now().UTC(),
	}

	lock := s.locks.Get(characterID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	err = s.store.UpsertMany(ctx, []models.MemoryChunk{chunk})
	s.metrics.Record(metrics.OpStoreWrite, time.Since(start), err)
	if err != nil {
		slog.Warn("failed to store conversation memory", "character", characterID, "error", err)
		return nil
	}

	s.pruneLocked(ctx, characterID)
	return nil
}

// pruneLocked enforces the conversation-memory cap for one character,
// evicting the lowest-retention chunks. Caller holds the character's write
// lock. Prune failures are logged, never surfaced: the new memory is
// already committed and the next write retries the prune anyway.
func (s *RetrievalService) pruneLocked(ctx context.Context, characterID string) {
	start := time.Now()
	evicted, err := s.prune(ctx, characterID)
	s.metrics.Record(metrics.OpPrune, time.Since(start), err)
	if err != nil {
		slog.Warn("memory pruning failed", "character", characterID, "error", err)
		return
	}
	if evicted > 0 {
		slog.Debug("pruned conversation memories", "character", characterID, "evicted", evicted)
	}
}

func (s *RetrievalService) prune(ctx context.Context, characterID string) (int, error) {
	chunks, err := s.store.ListByOwner(ctx, characterID)
	if err != nil {
		return 0, err
	}

	// Bio chunks are never eviction candidates; only re-ingestion
	// replaces them.
	var conv []models.MemoryChunk
	for _, c := range chunks {
		if c.MemoryType == models.MemoryTypeConversation {
			conv = append(conv, c)
		}
	}
	over := len(conv) - s.opts.MemoryCap
	if over <= 0 {
		return 0, nil
	}

	now := time.Now()
	slices.SortFunc(conv, func(a, b models.MemoryChunk) int {
		ra := retentionScore(a, now, s.opts.RecencyHalflife)
		rb := retentionScore(b, now, s.opts.RecencyHalflife)
		if c := cmp.Compare(ra, rb); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	ids := make([]string, over)
	for i := range ids {
		ids[i] = conv[i].ID
	}
	return s.store.DeleteByID(ctx, ids...)
}

// Health probes the retrieval dependencies.
func (s *RetrievalService) Health(ctx context.Context) []ComponentHealth {
	return []ComponentHealth{
		probe(ctx, "embedder", s.embedder.Health),
		probe(ctx, "store", s.store.Health),
	}
}

// effective merges per-call overrides onto the service defaults.
func (s *RetrievalService) effective(opts *models.QueryOptions) RetrievalOptions {
	eff := s.opts
	if opts == nil {
		return eff
	}
	if opts.MaxResults != nil && *opts.MaxResults > 0 {
		eff.MaxResults = *opts.MaxResults
	}
	if opts.MinSimilarity != nil {
		eff.MinSimilarity = *opts.MinSimilarity
	}
	if opts.WeightEmotional != nil {
		eff.WeightEmotional = *opts.WeightEmotional
	}
	if opts.BoostRecent != nil {
		eff.BoostRecent = *opts.BoostRecent
	}
	return eff
}

func (s *RetrievalService) embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vector, err := s.embedder.Embed(ctx, text)
	s.metrics.Record(metrics.OpEmbed, time.Since(start), err)
	return vector, err
}

func (s *RetrievalService) queryTopK(ctx context.Context, characterID string, vector []float32, k int) ([]models.ScoredChunk, error) {
	start := time.Now()
	scored, err := s.store.QueryTopK(ctx, characterID, vector, k)
	s.metrics.Record(metrics.OpStoreQuery, time.Since(start), err)
	return scored, err
}

// rankMemories applies the composite ranking to raw similarity candidates.
// The similarity floor filters on the raw value first; eligible memories
// are then ordered by similarity x recency x emotion x importance, ties
// going to the more recent memory, and cut to the result budget.
func rankMemories(candidates []models.ScoredChunk, opts RetrievalOptions, now time.Time) []models.ScoredChunk {
	type ranked struct {
		chunk models.ScoredChunk
		score float64
	}

	eligible := make([]ranked, 0, len(candidates))
	for _, c := range candidates {
		if c.Similarity < opts.MinSimilarity {
			continue
		}
		score := c.Similarity * c.Importance.Boost()
		if opts.WeightEmotional {
			score *= 1 + emotionalSlope*c.EmotionalWeight
		}
		if opts.BoostRecent {
			score *= recencyBoost(now.Sub(c.CreatedAt), opts.RecencyHalflife)
		}
		eligible = append(eligible, ranked{chunk: c, score: score})
	}

	slices.SortStableFunc(eligible, func(a, b ranked) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return b.chunk.CreatedAt.Compare(a.chunk.CreatedAt)
	})

	if len(eligible) > opts.MaxResults {
		eligible = eligible[:opts.MaxResults]
	}
	out := make([]models.ScoredChunk, len(eligible))
	for i, r := range eligible {
		out[i] = r.chunk
	}
	return out
}

// recencyBoost decays exponentially from 1.0 toward the floor as a memory
// ages.
func recencyBoost(age, halflife time.Duration) float64 {
	if age < 0 {
		age = 0
	}
	decay := math.Exp(-age.Seconds() / halflife.Seconds())
	return recencyFloor + (1-recencyFloor)*decay
}

// retentionScore values a conversation memory for keeping during pruning.
func retentionScore(c models.MemoryChunk, now time.Time, halflife time.Duration) float64 {
	age := now.Sub(c.CreatedAt)
	if age < 0 {
		age = 0
	}
	recency := math.Exp(-age.Seconds() / halflife.Seconds())
	return retainEmotional*c.EmotionalWeight +
		retainImportance*c.Importance.Weight() +
		retainRecency*recency
}
