package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/osmroute/osmroute/internal/tile"
	"github.com/osmroute/osmroute/pkg/polyline"
)

// Job types carried in PrefetchMessage.JobType.
const (
	JobTilePrefetch  = "tile_prefetch"
	JobRouteCorridor = "route_corridor"
	JobHealthCheck   = "health_check"
)

var (
	// ErrUnknownJob is returned for messages with an unrecognised job type.
	ErrUnknownJob = errors.New("unknown job type")
	// ErrMalformedMessage is returned for messages that cannot be decoded.
	ErrMalformedMessage = errors.New("malformed message")
)

// PrefetchMessage is the Pub/Sub payload understood by the worker.
type PrefetchMessage struct {
	JobType string `json:"job_type"`

	// Points to prefetch around (tile_prefetch) or the route itself
	// (route_corridor). An empty tile_prefetch uses the configured targets.
	Points []Point `json:"points,omitempty"`

	// Polyline is an encoded route for route_corridor, used when Points is empty.
	Polyline string `json:"polyline,omitempty"`

	// Radius overrides the configured ring count when set.
	Radius *int `json:"radius,omitempty"`
}

// Processor turns decoded messages into prefetch runs.
type Processor struct {
	job    *PrefetchJob
	logger zerolog.Logger
}

// NewProcessor creates a message processor around job.
func NewProcessor(job *PrefetchJob, logger zerolog.Logger) *Processor {
	return &Processor{job: job, logger: logger}
}

// Process handles one message payload. A run where more tiles are missing
// than available is an error so the message is redelivered.
func (p *Processor) Process(ctx context.Context, data []byte) error {
	var msg PrefetchMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	radius := p.job.config.Radius
	if msg.Radius != nil && *msg.Radius >= 0 {
		radius = *msg.Radius
	}
	level := p.job.tiles.DownloadLevel()

	var ids []tile.ID
	switch msg.JobType {
	case JobTilePrefetch:
		if len(msg.Points) == 0 {
			cfg := p.job.config
			cfg.Radius = radius
			ids = cfg.Tiles(level)
		} else {
			ids = TilesAround(msg.Points, level, radius)
		}
	case JobRouteCorridor:
		line, err := corridorLine(msg)
		if err != nil {
			return err
		}
		ids = Corridor(line, level, radius, p.job.config.CorridorSpacing)
	case JobHealthCheck:
		return p.healthCheck(ctx, level)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}

	result := p.job.RunTiles(ctx, ids)
	if len(result.Missing) > result.Available {
		return fmt.Errorf("too many missing tiles: %d/%d", len(result.Missing), result.Requested)
	}
	return nil
}

func corridorLine(msg PrefetchMessage) (orb.LineString, error) {
	if len(msg.Points) > 0 {
		line := make(orb.LineString, 0, len(msg.Points))
		for _, pt := range msg.Points {
			line = append(line, orb.Point{pt.Lon, pt.Lat})
		}
		return line, nil
	}
	if msg.Polyline == "" {
		return nil, fmt.Errorf("%w: route_corridor needs points or polyline", ErrMalformedMessage)
	}
	line, err := polyline.Decode(msg.Polyline)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return line, nil
}

// healthCheck fetches the single tile under the first configured point.
func (p *Processor) healthCheck(ctx context.Context, level int) error {
	points := p.job.config.AllPoints()
	if len(points) == 0 {
		return nil
	}
	id := tile.At(points[0].Lat, points[0].Lon, level)
	result := p.job.RunTiles(ctx, []tile.ID{id})
	if result.Available == 0 {
		return fmt.Errorf("health check failed: tile %s unavailable", id)
	}
	return nil
}

// PubSubHandler feeds Pub/Sub messages to a Processor.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	processor        *Processor
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Processor        *Processor
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Prefetch runs are long and download-bound; keep few in flight.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 2
	subscriber.ReceiveSettings.MaxExtension = 30 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		processor:        cfg.Processor,
		logger:           cfg.Logger,
	}, nil
}

// Start processes messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	err := h.processor.Process(ctx, msg.Data)
	switch {
	case errors.Is(err, ErrMalformedMessage), errors.Is(err, ErrUnknownJob):
		// Redelivery cannot fix these.
		logger.Warn().Err(err).Msg("dropping message")
		msg.Ack()
	case err != nil:
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
	default:
		logger.Info().Dur("duration", time.Since(startTime)).Msg("job completed successfully")
		msg.Ack()
	}
}
