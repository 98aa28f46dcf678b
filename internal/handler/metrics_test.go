package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfpackcloud/robot-gateway/internal/model"
	"github.com/wolfpackcloud/robot-gateway/internal/service"
)

type recordingSink struct {
	payloads [][]byte
	err      error
}

func (s *recordingSink) Write(ctx context.Context, payload []byte) error {
	if s.err != nil {
		return s.err
	}
	s.payloads = append(s.payloads, payload)
	return nil
}

func newMetricsHandler(sink *recordingSink) (*MetricsHandler, *memRobotRepo) {
	robots := newMemRobotRepo()
	token := "ingest-token-1"
	seen := time.Now().Add(-time.Minute)
	robots.robots["r1"] = &model.Robot{
		ID:          "r1",
		Name:        "lab-bot",
		Status:      model.RobotStatusActive,
		IngestToken: &token,
		LastSeenAt:  &seen,
	}
	return NewMetricsHandler(service.NewMetricsService(robots, sink)), robots
}

func (m *memRobotRepo) FindByIngestToken(ctx context.Context, token string) (*model.Robot, error) {
	for _, robot := range m.robots {
		if robot.IngestToken != nil && *robot.IngestToken == token {
			copied := *robot
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memRobotRepo) TouchLastSeen(ctx context.Context, id string, now time.Time) error {
	if robot, ok := m.robots[id]; ok {
		robot.LastSeenAt = &now
	}
	return nil
}

func postMetrics(h *MetricsHandler, authHeader string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/metrics", bytes.NewReader(body))
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	h.Ingest(rec, req)
	return rec
}

func TestMetricsIngest(t *testing.T) {
	payload := []byte("cpu,host=lab-bot usage=12.5 1700000000000000000\n")

	t.Run("valid submission returns 204", func(t *testing.T) {
		sink := &recordingSink{}
		h, robots := newMetricsHandler(sink)
		before := *robots.robots["r1"].LastSeenAt

		rec := postMetrics(h, "Bearer ingest-token-1", payload)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		require.Len(t, sink.payloads, 1)
		assert.Equal(t, payload, sink.payloads[0])
		assert.True(t, robots.robots["r1"].LastSeenAt.After(before))
	})

	t.Run("missing authorization header returns 401", func(t *testing.T) {
		h, _ := newMetricsHandler(&recordingSink{})

		rec := postMetrics(h, "", payload)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown token returns 401", func(t *testing.T) {
		h, _ := newMetricsHandler(&recordingSink{})

		rec := postMetrics(h, "Bearer nope", payload)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("inactive robot returns 403", func(t *testing.T) {
		h, robots := newMetricsHandler(&recordingSink{})
		robots.robots["r1"].Status = model.RobotStatusInactive

		rec := postMetrics(h, "Bearer ingest-token-1", payload)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("empty body returns 400", func(t *testing.T) {
		h, _ := newMetricsHandler(&recordingSink{})

		rec := postMetrics(h, "Bearer ingest-token-1", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("sink failure returns 502", func(t *testing.T) {
		h, robots := newMetricsHandler(&recordingSink{err: assert.AnError})
		before := *robots.robots["r1"].LastSeenAt

		rec := postMetrics(h, "Bearer ingest-token-1", payload)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.True(t, robots.robots["r1"].LastSeenAt.Equal(before))
	})
}
