package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/osmroute/osmroute/internal/tile"
)

// TileSource fetches and caches tiles. *tile.Cache implements it.
type TileSource interface {
	GetTile(ctx context.Context, id tile.ID) (string, bool)
	DownloadLevel() int
}

// PrefetchJob fetches download-level tiles into the cache with a bounded
// worker pool.
type PrefetchJob struct {
	config PrefetchConfig
	tiles  TileSource
	logger zerolog.Logger

	metrics *PrefetchMetrics
}

// PrefetchMetrics tracks prefetch job statistics.
type PrefetchMetrics struct {
	mu sync.RWMutex

	TotalRuns      int64
	TilesRequested int64
	TilesAvailable int64
	TilesMissing   int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// PrefetchJobConfig holds configuration for creating a PrefetchJob.
type PrefetchJobConfig struct {
	Config PrefetchConfig
	Tiles  TileSource
	Logger zerolog.Logger
}

// NewPrefetchJob creates a new prefetch job.
func NewPrefetchJob(cfg PrefetchJobConfig) *PrefetchJob {
	return &PrefetchJob{
		config:  cfg.Config.withDefaults(),
		tiles:   cfg.Tiles,
		logger:  cfg.Logger,
		metrics: &PrefetchMetrics{},
	}
}

// Config returns the effective configuration.
func (j *PrefetchJob) Config() PrefetchConfig {
	return j.config
}

// PrefetchResult contains the result of one prefetch run.
type PrefetchResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Requested int
	Available int
	Missing   []tile.ID
}

// Run prefetches the tiles around every configured target.
func (j *PrefetchJob) Run(ctx context.Context) *PrefetchResult {
	return j.RunTiles(ctx, j.config.Tiles(j.tiles.DownloadLevel()))
}

// RunTiles prefetches the given tiles. Tiles not processed before ctx is
// cancelled are reported missing.
func (j *PrefetchJob) RunTiles(ctx context.Context, ids []tile.ID) *PrefetchResult {
	startTime := time.Now()
	result := &PrefetchResult{
		StartTime: startTime,
		Requested: len(ids),
	}

	j.logger.Info().
		Int("tiles", len(ids)).
		Int("concurrency", j.config.Concurrency).
		Msg("starting tile prefetch")

	work := make(chan tile.ID)
	results := make(chan tileResult, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range work {
				results <- j.fetch(ctx, id)
			}
		}()
	}

	sent := 0
feed:
	for _, id := range ids {
		select {
		case <-ctx.Done():
			break feed
		case work <- id:
			sent++
		}
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	for tr := range results {
		if tr.ok {
			result.Available++
		} else {
			result.Missing = append(result.Missing, tr.id)
		}
	}
	result.Missing = append(result.Missing, ids[sent:]...)

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)
	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("available", result.Available).
		Int("missing", len(result.Missing)).
		Msg("tile prefetch completed")

	return result
}

// RunEvery runs the job immediately and then every interval until ctx is done.
func (j *PrefetchJob) RunEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		j.Run(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

type tileResult struct {
	id tile.ID
	ok bool
}

func (j *PrefetchJob) fetch(ctx context.Context, id tile.ID) tileResult {
	if ctx.Err() != nil {
		return tileResult{id: id}
	}
	tileCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	_, ok := j.tiles.GetTile(tileCtx, id)
	if !ok {
		j.logger.Debug().Str("tile", id.String()).Msg("tile unavailable")
	}
	return tileResult{id: id, ok: ok}
}

func (j *PrefetchJob) updateMetrics(result *PrefetchResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.TilesRequested += int64(result.Requested)
	j.metrics.TilesAvailable += int64(result.Available)
	j.metrics.TilesMissing += int64(len(result.Missing))
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *PrefetchJob) GetMetrics() PrefetchMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return PrefetchMetrics{
		TotalRuns:       j.metrics.TotalRuns,
		TilesRequested:  j.metrics.TilesRequested,
		TilesAvailable:  j.metrics.TilesAvailable,
		TilesMissing:    j.metrics.TilesMissing,
		LastRunAt:       j.metrics.LastRunAt,
		LastRunDuration: j.metrics.LastRunDuration,
		TotalDuration:   j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *PrefetchJob) MetricsSnapshot() map[string]any {
	m := j.GetMetrics()
	return map[string]any{
		"total_runs":        m.TotalRuns,
		"tiles_requested":   m.TilesRequested,
		"tiles_available":   m.TilesAvailable,
		"tiles_missing":     m.TilesMissing,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"total_duration":    m.TotalDuration.String(),
	}
}
