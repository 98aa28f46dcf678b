package service

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/wolfpackcloud/robot-gateway/internal/errors"
	"github.com/wolfpackcloud/robot-gateway/internal/model"
	"github.com/wolfpackcloud/robot-gateway/internal/repository"
)

// Sink accepts a raw line-protocol payload for downstream storage.
type Sink interface {
	Write(ctx context.Context, payload []byte) error
}

type MetricsService struct {
	robotRepo repository.RobotRepository
	sink      Sink
	now       func() time.Time
}

func NewMetricsService(robotRepo repository.RobotRepository, sink Sink) *MetricsService {
	return &MetricsService{
		robotRepo: robotRepo,
		sink:      sink,
		now:       time.Now,
	}
}

// Ingest authenticates the robot by its ingest token, forwards the payload to
// the sink and, only after a confirmed write, refreshes the robot's liveness.
// Delivery is at-least-once: a retried submission writes downstream twice.
func (s *MetricsService) Ingest(ctx context.Context, token string, body []byte, contentEncoding string) error {
	if token == "" {
		return apperrors.Unauthorized("Missing ingest token")
	}

	robot, err := s.robotRepo.FindByIngestToken(ctx, token)
	if err != nil {
		return apperrors.Database(err)
	}
	if robot == nil {
		return apperrors.InvalidToken("Unknown ingest token")
	}

	// Gates out pending/inactive/error robots, including one demoted by
	// the sweeper mid-session.
	if robot.Status != model.RobotStatusActive {
		return apperrors.RobotNotActive(string(robot.Status))
	}

	if len(body) == 0 {
		return apperrors.InvalidPayload("Request body is empty")
	}

	if strings.EqualFold(contentEncoding, "gzip") {
		body, err = decompressGzip(body)
		if err != nil {
			return apperrors.InvalidPayload("Invalid gzip data")
		}
	}

	if err := s.sink.Write(ctx, body); err != nil {
		return apperrors.SinkUnavailable(err.Error())
	}

	if err := s.robotRepo.TouchLastSeen(ctx, robot.ID, s.now()); err != nil {
		// The write already landed downstream; a failed liveness bump
		// is not worth surfacing to the agent.
		log.Error().Err(err).Str("robotId", robot.ID).Msg("failed to update last_seen_at")
	}

	return nil
}

func decompressGzip(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}
