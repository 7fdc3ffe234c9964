package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wanderlyst/agentcore/engine/memory/store"
)

// RankConfig tunes the retrieval ranking algorithm (spec §4.G "Retrieval
// ranking"): a semantic search unioned with an optional preference-filtered
// search and an optional recency-window search, re-scored by a weighted
// blend of relevance and recency.
type RankConfig struct {
	MaxMemories              int
	ScoreThreshold           float64
	PreferenceScoreThreshold float64
	PreferenceLimit          int
	RecencyWindowHours       float64
	RelevanceWeight          float64
	RecencyWeight            float64
	PreferenceBoost          float64
	IncludePreferences       bool
	IncludeRecent            bool
}

// DefaultRankConfig returns the spec's documented defaults.
func DefaultRankConfig() RankConfig {
	return RankConfig{
		MaxMemories:              5,
		ScoreThreshold:           0.7,
		PreferenceScoreThreshold: 0.5,
		PreferenceLimit:          3,
		RecencyWindowHours:       24,
		RelevanceWeight:          0.8,
		RecencyWeight:            0.2,
		PreferenceBoost:          1.2,
		IncludePreferences:       true,
		IncludeRecent:            true,
	}
}

// Ranked is a retrieved memory annotated with its combined score and a
// human-readable recency hint for prompt injection.
type Ranked struct {
	store.Record
	RelevanceScore float64
	CombinedScore  float64
	TimeHint       string
}

// Ranker executes the retrieval ranking algorithm against a single
// collection.
type Ranker struct {
	store      store.Store
	collection store.Collection
}

// NewRanker builds a Ranker over the given collection.
func NewRanker(s store.Store, collection store.Collection) *Ranker {
	return &Ranker{store: s, collection: collection}
}

// Retrieve runs the 5-step ranking algorithm and returns the top
// cfg.MaxMemories results, highest combined score first.
func (r *Ranker) Retrieve(
	ctx context.Context,
	query []float32,
	filters store.SearchFilters,
	cfg RankConfig,
	now time.Time,
) ([]Ranked, error) {
	byID := make(map[string]store.SearchResult)

	semantic, err := r.store.Search(ctx, r.collection, query, filters, 2*cfg.MaxMemories, cfg.ScoreThreshold)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	for _, res := range semantic {
		byID[res.ID] = res
	}

	if cfg.IncludePreferences {
		prefFilters := filters
		prefFilters.MemoryType = string(preferenceMemoryType)
		prefs, err := r.store.Search(ctx, r.collection, query, prefFilters, cfg.PreferenceLimit, cfg.PreferenceScoreThreshold)
		if err != nil {
			return nil, fmt.Errorf("preference search: %w", err)
		}
		for _, res := range prefs {
			if _, ok := byID[res.ID]; !ok {
				byID[res.ID] = res
			}
		}
	}

	if cfg.IncludeRecent && filters.ThreadID != "" {
		recent, err := r.recentInThread(ctx, filters, cfg, now)
		if err != nil {
			return nil, fmt.Errorf("recency window search: %w", err)
		}
		for _, res := range recent {
			if _, ok := byID[res.ID]; !ok {
				byID[res.ID] = res
			}
		}
	}

	ranked := make([]Ranked, 0, len(byID))
	for _, res := range byID {
		ranked = append(ranked, r.score(res, cfg, now))
	}

	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].CombinedScore > ranked[j].CombinedScore
	})
	if len(ranked) > cfg.MaxMemories {
		ranked = ranked[:cfg.MaxMemories]
	}
	return ranked, nil
}

// recentInThread fetches the caller's most recent memories (ListByUser is
// newest-first) and keeps the ones in this thread created within the
// recency window, defaulting to a score of 0.5 per the spec.
func (r *Ranker) recentInThread(
	ctx context.Context,
	filters store.SearchFilters,
	cfg RankConfig,
	now time.Time,
) ([]store.SearchResult, error) {
	const recentFetchMultiplier = 4
	candidates, err := r.store.ListByUser(ctx, r.collection, filters.UserID, nil, cfg.MaxMemories*recentFetchMultiplier)
	if err != nil {
		return nil, err
	}

	cutoff := now.Add(-time.Duration(cfg.RecencyWindowHours * float64(time.Hour)))
	var out []store.SearchResult
	for _, rec := range candidates {
		if rec.ThreadID != filters.ThreadID {
			continue
		}
		if rec.CreatedAt.Before(cutoff) {
			continue
		}
		out = append(out, store.SearchResult{Record: rec, Score: recentDefaultScore})
	}
	return out, nil
}

const (
	preferenceMemoryType = "preference"
	recentDefaultScore   = 0.5
)

func (r *Ranker) score(res store.SearchResult, cfg RankConfig, now time.Time) Ranked {
	ageHours := now.Sub(res.CreatedAt).Hours()
	recency := math.Max(0, 1-ageHours/(7*cfg.RecencyWindowHours))
	combined := cfg.RelevanceWeight*res.Score + cfg.RecencyWeight*recency
	if res.MemoryType == preferenceMemoryType {
		combined *= cfg.PreferenceBoost
	}
	return Ranked{
		Record:         res.Record,
		RelevanceScore: res.Score,
		CombinedScore:  combined,
		TimeHint:       humanTimeHint(res.CreatedAt, now),
	}
}

// humanTimeHint renders a recency label for prompt injection: "just now"
// for anything under an hour, "X hours ago", "X days ago", or an ISO date
// for anything older than a week.
func humanTimeHint(t, now time.Time) string {
	age := now.Sub(t)
	switch {
	case age < time.Hour:
		return "just now"
	case age < 24*time.Hour:
		hours := int(age.Hours())
		return fmt.Sprintf("%d hours ago", hours)
	case age < 7*24*time.Hour:
		days := int(age.Hours() / 24)
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02")
	}
}
