// Command osmroute computes a single route from the command line, printing a
// summary or writing GPX and CSV.
//
// Usage:
//
//	osmroute [flags] <start-lat> <start-lon> <end-lat> <end-lon>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/osmroute/osmroute/internal/config"
	"github.com/osmroute/osmroute/internal/logging"
	"github.com/osmroute/osmroute/internal/osmgraph"
	"github.com/osmroute/osmroute/internal/provider/resilience"
	"github.com/osmroute/osmroute/internal/routing"
	"github.com/osmroute/osmroute/internal/tile"
)

// Version is set at compile time via ldflags.
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "osmroute:", err)
		if errors.Is(err, errNoRoute) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

var errNoRoute = errors.New("no route")

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.New()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("osmroute", flag.ContinueOnError)
	fs.SetOutput(stderr)
	mode := fs.String("mode", string(osmgraph.ModeCar), "transport mode: car, cycle, foot, horse or train")
	gpxPath := fs.String("gpx", "", "write the route as GPX to this file (- for stdout)")
	gpxStyle := fs.String("gpx-style", string(routing.GPXRoute), "GPX layout: route or track")
	csvPath := fs.String("csv", "", "write the route as id,lat,lon rows to this file (- for stdout)")
	dir := fs.String("tiles", cfg.Tiles.Dir, "tile cache directory")
	strategy := fs.String("strategy", cfg.Routing.Strategy, "search strategy: astar or uniform")
	verbose := fs.Bool("v", false, "log tile and search activity")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() != 4 {
		fs.Usage()
		return errors.New("expected <start-lat> <start-lon> <end-lat> <end-lon>")
	}

	coords := make([]float64, 4)
	for i, s := range fs.Args() {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("coordinate %q: %w", s, err)
		}
		coords[i] = v
	}

	m, err := osmgraph.ParseMode(*mode)
	if err != nil {
		return err
	}
	strat, err := routing.ParseStrategy(*strategy)
	if err != nil {
		return err
	}
	style, err := routing.ParseGPXStyle(*gpxStyle)
	if err != nil {
		return err
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log, err := logging.New(logging.Config{
		Level:   level,
		Format:  "console",
		Service: "osmroute",
		Version: Version,
		Output:  stderr,
	})
	if err != nil {
		return err
	}

	cache := tile.NewCache(tile.CacheConfig{
		Dir:           *dir,
		DownloadLevel: cfg.Tiles.DownloadLevel,
		MaxMergeDepth: cfg.Tiles.MaxMergeDepth,
		Fetcher:       newFetcher(cfg, log),
		Logger:        log,
	})
	svc := routing.NewService(routing.ServiceConfig{
		Tiles:         cache,
		Strategy:      strat,
		MaxIterations: cfg.Routing.MaxIterations,
		Logger:        log,
		CacheTTL:      -1,
	})

	resp, err := svc.Route(ctx, routing.RouteRequest{
		Start: routing.Coordinate{Lat: coords[0], Lon: coords[1]},
		End:   routing.Coordinate{Lat: coords[2], Lon: coords[3]},
		Mode:  m,
	})
	if err != nil {
		return err
	}

	if resp.Status != routing.StatusSuccess {
		fmt.Fprintf(stdout, "status: %s after %d iterations\n", resp.Status, resp.Iterations)
		return fmt.Errorf("%w: %s", errNoRoute, resp.Status)
	}

	if *gpxPath != "" || *csvPath != "" {
		if *gpxPath != "" {
			err = writeTo(*gpxPath, stdout, func(w io.Writer) error { return routing.WriteGPX(w, resp, style) })
		}
		if err == nil && *csvPath != "" {
			err = writeTo(*csvPath, stdout, func(w io.Writer) error { return routing.WriteCSV(w, resp) })
		}
		return err
	}

	fmt.Fprintf(stdout, "status:     %s\n", resp.Status)
	fmt.Fprintf(stdout, "mode:       %s\n", resp.Mode)
	fmt.Fprintf(stdout, "nodes:      %d (%d -> %d)\n", len(resp.Nodes), resp.StartNode.ID, resp.EndNode.ID)
	fmt.Fprintf(stdout, "distance:   %.0f m\n", resp.DistanceMeters)
	fmt.Fprintf(stdout, "cost:       %.1f\n", resp.Cost)
	fmt.Fprintf(stdout, "iterations: %d\n", resp.Iterations)
	fmt.Fprintf(stdout, "polyline:   %s\n", resp.Polyline)
	return nil
}

func newFetcher(cfg *config.Config, log zerolog.Logger) tile.Fetcher {
	return tile.NewHTTPFetcher(tile.FetcherConfig{
		BaseURL: cfg.Tiles.BaseURL,
		HTTPClient: resilience.NewClient(resilience.ClientConfig{
			Name:       "osm-api",
			UserAgent:  cfg.Tiles.UserAgent,
			Timeout:    cfg.Tiles.Timeout,
			MaxRetries: uint64(cfg.Tiles.MaxRetries),
		}),
		Logger: log,
	})
}

// writeTo runs write against path, or stdout when path is "-".
func writeTo(path string, stdout io.Writer, write func(io.Writer) error) (err error) {
	if path == "-" {
		return write(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	return write(f)
}
