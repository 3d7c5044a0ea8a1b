package tile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrInvalidTile is returned for ids outside the addressable range.
var ErrInvalidTile = errors.New("invalid tile id")

// FileName is the name of the payload file inside each tile directory.
const FileName = "data.osm"

// DefaultMaxMergeDepth bounds how many levels below the download level a
// request may be satisfied by merging (4 levels = up to 256 downloads).
const DefaultMaxMergeDepth = 4

// NoMergeLimit lets every tile coarser than the download level be merged,
// however many downloads that takes.
const NoMergeLimit = -1

// CacheConfig holds configuration for the tile cache.
type CacheConfig struct {
	// Dir is the cache root; tiles live at Dir/<z>/<x>/<y>/data.osm.
	Dir string

	// DownloadLevel is the zoom fetched from the network.
	// Default: DefaultDownloadLevel
	DownloadLevel int

	// MaxMergeDepth is the deepest merge below DownloadLevel. A negative
	// value (NoMergeLimit) removes the limit.
	// Default: DefaultMaxMergeDepth
	MaxMergeDepth int

	// Fetcher downloads tiles at DownloadLevel. Required.
	Fetcher Fetcher

	Logger  zerolog.Logger
	Metrics *Metrics
	Tracer  trace.Tracer
}

// Cache resolves tile requests to files on disk. It is safe for concurrent
// use; concurrent writers of the same tile each write a private temp file and
// the last rename wins.
type Cache struct {
	dir           string
	level         int
	maxMergeDepth int
	fetcher       Fetcher
	logger        zerolog.Logger
	metrics       *Metrics
	tracer        trace.Tracer
}

// NewCache creates a tile cache.
func NewCache(cfg CacheConfig) *Cache {
	if cfg.Dir == "" {
		cfg.Dir = "cache"
	}
	if cfg.DownloadLevel <= 0 || cfg.DownloadLevel > MaxZoom {
		cfg.DownloadLevel = DefaultDownloadLevel
	}
	if cfg.MaxMergeDepth == 0 {
		cfg.MaxMergeDepth = DefaultMaxMergeDepth
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(instrumentationName)
	}

	return &Cache{
		dir:           cfg.Dir,
		level:         cfg.DownloadLevel,
		maxMergeDepth: cfg.MaxMergeDepth,
		fetcher:       cfg.Fetcher,
		logger:        cfg.Logger.With().Str("component", "tile_cache").Logger(),
		metrics:       cfg.Metrics,
		tracer:        cfg.Tracer,
	}
}

// DownloadLevel returns the zoom at which tiles are fetched.
func (c *Cache) DownloadLevel() int {
	return c.level
}

// Dir returns the cache root.
func (c *Cache) Dir() string {
	return c.dir
}

// Path returns where the payload for id is stored, whether or not it exists.
func (c *Cache) Path(id ID) string {
	return filepath.Join(c.dir, strconv.Itoa(id.Z), strconv.Itoa(id.X), strconv.Itoa(id.Y), FileName)
}

// GetTile returns the path of an OSM XML file covering id, downloading or
// merging as needed. A false result means no data is available for the tile
// right now; nothing is cached for it, so a later call may succeed.
//
// Requests finer than the download level are answered by the single ancestor
// tile at that level. Requests coarser than it are built by merging the four
// children recursively, unless they lie more than MaxMergeDepth levels below
// the download level; those return false without I/O.
func (c *Cache) GetTile(ctx context.Context, id ID) (string, bool) {
	if !id.Valid() {
		c.logger.Debug().Str("tile", id.String()).Msg("rejecting invalid tile")
		return "", false
	}
	if id.Z > c.level {
		id = id.AncestorAt(c.level)
	}
	if c.maxMergeDepth >= 0 && id.Z < c.level-c.maxMergeDepth {
		c.logger.Warn().
			Str("tile", id.String()).
			Int("max_merge_depth", c.maxMergeDepth).
			Msg("tile too coarse to merge")
		return "", false
	}
	return c.resolve(ctx, id)
}

// Remove deletes the cached payload for id, if any.
func (c *Cache) Remove(id ID) error {
	if !id.Valid() {
		return ErrInvalidTile
	}
	err := os.Remove(c.Path(id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove tile %s: %w", id, err)
	}
	return nil
}

// Check verifies the cache directory exists and accepts writes.
func (c *Cache) Check(context.Context) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("tile cache dir: %w", err)
	}
	f, err := os.CreateTemp(c.dir, ".check-*")
	if err != nil {
		return fmt.Errorf("tile cache dir not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func (c *Cache) resolve(ctx context.Context, id ID) (string, bool) {
	path := c.Path(id)
	if fileExists(path) {
		c.metrics.RecordLookup(id.Z, true)
		return path, true
	}
	c.metrics.RecordLookup(id.Z, false)

	if ctx.Err() != nil {
		return "", false
	}

	if id.Z == c.level {
		if err := c.download(ctx, id, path); err != nil {
			c.logger.Warn().Err(err).Str("tile", id.String()).Msg("tile download failed")
			return "", false
		}
		return path, true
	}

	if err := c.merge(ctx, id, path); err != nil {
		c.logger.Warn().Err(err).Str("tile", id.String()).Msg("tile merge failed")
		return "", false
	}
	return path, true
}

func (c *Cache) download(ctx context.Context, id ID, path string) error {
	if c.fetcher == nil {
		return fmt.Errorf("%w: no fetcher configured", ErrUpstream)
	}

	ctx, span := c.tracer.Start(ctx, "tile.download", trace.WithAttributes(
		attribute.String("tile.id", id.String()),
	))
	defer span.End()

	start := time.Now()
	var size int64
	err := writeAtomic(path, func(w io.Writer) error {
		n, err := c.fetcher.Fetch(ctx, id, w)
		size = n
		return err
	})
	duration := time.Since(start)
	c.metrics.RecordDownload(duration, size, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetAttributes(attribute.Int64("tile.size", size))
	c.logger.Info().
		Str("tile", id.String()).
		Int64("bytes", size).
		Dur("duration", duration).
		Msg("tile downloaded")
	return nil
}

func (c *Cache) merge(ctx context.Context, id ID, path string) error {
	children := id.Children()
	paths := make([]string, 0, len(children))
	var missing []string

	for _, child := range children {
		p, ok := c.resolve(ctx, child)
		if !ok {
			missing = append(missing, child.String())
			continue
		}
		paths = append(paths, p)
	}

	var err error
	if len(missing) > 0 {
		err = fmt.Errorf("children unavailable: %v", missing)
	} else {
		err = writeAtomic(path, func(w io.Writer) error {
			return mergeFiles(ctx, w, paths)
		})
	}
	c.metrics.RecordMerge(id.Z, err)
	if err != nil {
		return err
	}

	c.logger.Debug().Str("tile", id.String()).Msg("tile merged")
	return nil
}

// writeAtomic streams into a temp file next to path and renames it into place.
// The temp file is removed on any failure.
func writeAtomic(path string, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create tile dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
