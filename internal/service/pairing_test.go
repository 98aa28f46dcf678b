package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wolfpackcloud/robot-gateway/internal/errors"
	"github.com/wolfpackcloud/robot-gateway/internal/model"
)

const testTTL = 15 * time.Minute

func newTestPairingService(codes *mockPairCodeRepo, robots *mockRobotRepo) *PairingService {
	return NewPairingService(
		mockTxRunner{}, codes, robots, testTTL,
		"http://api.test", "http://api.test/api/metrics",
	)
}

func activeUser() *model.User {
	return &model.User{ID: "user-1", Name: "Alice", Role: model.RoleUser, IsActive: true}
}

func TestRegister(t *testing.T) {
	t.Run("creates pending robot and code with exact TTL", func(t *testing.T) {
		codes := newMockPairCodeRepo()
		robots := newMockRobotRepo()
		svc := newTestPairingService(codes, robots)

		registeredAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		svc.now = func() time.Time { return registeredAt }

		result, err := svc.Register(context.Background(), RegisterParams{
			Hostname: "robot-01.local",
			PairCode: "AB12CD34",
		})
		require.NoError(t, err)

		assert.Equal(t, model.PairCodeStatusPending, result.Status)
		assert.Equal(t, "AB12CD34", result.PairCode)
		assert.Equal(t, registeredAt.Add(testTTL), result.ExpiresAt)

		robot, err := robots.FindByID(context.Background(), result.RobotID)
		require.NoError(t, err)
		require.NotNil(t, robot)
		assert.Equal(t, model.RobotStatusPending, robot.Status)
		assert.Nil(t, robot.IngestToken)
		assert.Nil(t, robot.OwnerID)
	})

	t.Run("defaults name to hostname and architecture to arm64", func(t *testing.T) {
		codes := newMockPairCodeRepo()
		robots := newMockRobotRepo()
		svc := newTestPairingService(codes, robots)

		result, err := svc.Register(context.Background(), RegisterParams{
			Hostname: "robot-02.local",
			PairCode: "XY99ZZ11",
		})
		require.NoError(t, err)

		robot, _ := robots.FindByID(context.Background(), result.RobotID)
		assert.Equal(t, "robot-02.local", robot.Name)
		assert.Equal(t, model.ArchARM64, robot.Architecture)
	})

	t.Run("normalizes code to uppercase", func(t *testing.T) {
		svc := newTestPairingService(newMockPairCodeRepo(), newMockRobotRepo())

		result, err := svc.Register(context.Background(), RegisterParams{
			Hostname: "robot-03.local",
			PairCode: "ab12cd34",
		})
		require.NoError(t, err)
		assert.Equal(t, "AB12CD34", result.PairCode)
	})

	t.Run("rejects duplicate pending code without creating a robot", func(t *testing.T) {
		codes := newMockPairCodeRepo()
		robots := newMockRobotRepo()
		svc := newTestPairingService(codes, robots)

		_, err := svc.Register(context.Background(), RegisterParams{
			Hostname: "robot-01.local",
			PairCode: "AB12CD34",
		})
		require.NoError(t, err)

		_, err = svc.Register(context.Background(), RegisterParams{
			Hostname: "robot-02.local",
			PairCode: "AB12CD34",
		})
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeCodeInUse, apperrors.GetCode(err))
		assert.Len(t, robots.robots, 1)
	})

	t.Run("allows code reuse after the prior occupant expired", func(t *testing.T) {
		codes := newMockPairCodeRepo()
		robots := newMockRobotRepo()
		svc := newTestPairingService(codes, robots)

		start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		svc.now = func() time.Time { return start }

		_, err := svc.Register(context.Background(), RegisterParams{
			Hostname: "robot-01.local",
			PairCode: "AB12CD34",
		})
		require.NoError(t, err)

		// Past expiry: the poll flips the code to expired.
		svc.now = func() time.Time { return start.Add(testTTL + time.Second) }
		_, err = svc.PollStatus(context.Background(), "AB12CD34")
		require.NoError(t, err)

		_, err = svc.Register(context.Background(), RegisterParams{
			Hostname: "robot-02.local",
			PairCode: "AB12CD34",
		})
		assert.NoError(t, err)
	})

	t.Run("validates input", func(t *testing.T) {
		svc := newTestPairingService(newMockPairCodeRepo(), newMockRobotRepo())

		tests := []struct {
			name   string
			params RegisterParams
		}{
			{"short code", RegisterParams{Hostname: "h", PairCode: "AB12"}},
			{"code with symbols", RegisterParams{Hostname: "h", PairCode: "AB12-D34"}},
			{"missing hostname", RegisterParams{Hostname: "", PairCode: "AB12CD34"}},
			{"bad ip", RegisterParams{Hostname: "h", PairCode: "AB12CD34", IPAddress: strPtr("nope")}},
			{"bad architecture", RegisterParams{Hostname: "h", PairCode: "AB12CD34", Architecture: "mips"}},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				_, err := svc.Register(context.Background(), tc.params)
				assert.Error(t, err)
			})
		}
	})
}

func TestPollStatus(t *testing.T) {
	setup := func(t *testing.T) (*PairingService, *mockPairCodeRepo, *mockRobotRepo, string) {
		codes := newMockPairCodeRepo()
		robots := newMockRobotRepo()
		svc := newTestPairingService(codes, robots)

		result, err := svc.Register(context.Background(), RegisterParams{
			Hostname: "robot-01.local",
			PairCode: "AB12CD34",
		})
		require.NoError(t, err)
		return svc, codes, robots, result.RobotID
	}

	t.Run("pending code returns robot id and no token", func(t *testing.T) {
		svc, _, _, robotID := setup(t)

		result, err := svc.PollStatus(context.Background(), "AB12CD34")
		require.NoError(t, err)

		assert.Equal(t, model.PairCodeStatusPending, result.Status)
		require.NotNil(t, result.RobotID)
		assert.Equal(t, robotID, *result.RobotID)
		assert.Nil(t, result.RobotToken)
	})

	t.Run("lookup is case-insensitive", func(t *testing.T) {
		svc, _, _, _ := setup(t)

		result, err := svc.PollStatus(context.Background(), "ab12cd34")
		require.NoError(t, err)
		assert.Equal(t, model.PairCodeStatusPending, result.Status)
	})

	t.Run("unknown code returns not found", func(t *testing.T) {
		svc, _, _, _ := setup(t)

		_, err := svc.PollStatus(context.Background(), "NOPE0000")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})

	t.Run("confirmed code returns token and metrics url", func(t *testing.T) {
		svc, _, _, _ := setup(t)

		confirmed, err := svc.Confirm(context.Background(), "AB12CD34", nil, activeUser())
		require.NoError(t, err)

		result, err := svc.PollStatus(context.Background(), "AB12CD34")
		require.NoError(t, err)

		assert.Equal(t, model.PairCodeStatusConfirmed, result.Status)
		require.NotNil(t, result.RobotToken)
		assert.Equal(t, confirmed.IngestToken, *result.RobotToken)
		assert.Equal(t, "http://api.test/api/metrics", result.APIURL)
	})

	t.Run("expired code is persisted and reported exactly once", func(t *testing.T) {
		svc, codes, _, _ := setup(t)

		svc.now = func() time.Time { return time.Now().Add(testTTL + time.Minute) }

		result, err := svc.PollStatus(context.Background(), "AB12CD34")
		require.NoError(t, err)
		assert.Equal(t, model.PairCodeStatusExpired, result.Status)
		assert.Nil(t, result.RobotID)
		assert.Nil(t, result.RobotToken)

		stored, _ := codes.FindByCode(context.Background(), "AB12CD34")
		assert.Equal(t, model.PairCodeStatusExpired, stored.Status)

		// Stays expired on subsequent reads, even back in the past.
		svc.now = time.Now
		again, err := svc.PollStatus(context.Background(), "AB12CD34")
		require.NoError(t, err)
		assert.Equal(t, model.PairCodeStatusExpired, again.Status)
	})
}

func TestGetCodeInfo(t *testing.T) {
	t.Run("returns code and robot summary", func(t *testing.T) {
		codes := newMockPairCodeRepo()
		robots := newMockRobotRepo()
		svc := newTestPairingService(codes, robots)

		result, err := svc.Register(context.Background(), RegisterParams{
			Hostname: "robot-01.local",
			PairCode: "AB12CD34",
		})
		require.NoError(t, err)

		info, err := svc.GetCodeInfo(context.Background(), "ab12cd34")
		require.NoError(t, err)
		assert.Equal(t, "AB12CD34", info.Code.Code)
		require.NotNil(t, info.Robot)
		assert.Equal(t, result.RobotID, info.Robot.ID)
	})

	t.Run("applies lazy expiry", func(t *testing.T) {
		codes := newMockPairCodeRepo()
		svc := newTestPairingService(codes, newMockRobotRepo())

		_, err := svc.Register(context.Background(), RegisterParams{
			Hostname: "robot-01.local",
			PairCode: "AB12CD34",
		})
		require.NoError(t, err)

		svc.now = func() time.Time { return time.Now().Add(testTTL + time.Minute) }

		info, err := svc.GetCodeInfo(context.Background(), "AB12CD34")
		require.NoError(t, err)
		assert.Equal(t, model.PairCodeStatusExpired, info.Code.Status)
	})
}

func TestConfirm(t *testing.T) {
	setup := func(t *testing.T) (*PairingService, *mockPairCodeRepo, *mockRobotRepo, string) {
		codes := newMockPairCodeRepo()
		robots := newMockRobotRepo()
		svc := newTestPairingService(codes, robots)

		result, err := svc.Register(context.Background(), RegisterParams{
			Hostname: "robot-01.local",
			PairCode: "AB12CD34",
		})
		require.NoError(t, err)
		return svc, codes, robots, result.RobotID
	}

	t.Run("mints token and activates robot", func(t *testing.T) {
		svc, codes, robots, robotID := setup(t)

		result, err := svc.Confirm(context.Background(), "AB12CD34", nil, activeUser())
		require.NoError(t, err)

		assert.Equal(t, robotID, result.RobotID)
		assert.Equal(t, model.RobotStatusActive, result.Status)
		assert.Len(t, result.IngestToken, 64)

		robot, _ := robots.FindByID(context.Background(), robotID)
		assert.Equal(t, model.RobotStatusActive, robot.Status)
		require.NotNil(t, robot.OwnerID)
		assert.Equal(t, "user-1", *robot.OwnerID)
		require.NotNil(t, robot.IngestToken)
		assert.Equal(t, result.IngestToken, *robot.IngestToken)
		assert.NotNil(t, robot.LastSeenAt)

		stored, _ := codes.FindByCode(context.Background(), "AB12CD34")
		assert.Equal(t, model.PairCodeStatusConfirmed, stored.Status)
		assert.NotNil(t, stored.ConfirmedAt)
	})

	t.Run("optionally renames the robot", func(t *testing.T) {
		svc, _, robots, robotID := setup(t)

		_, err := svc.Confirm(context.Background(), "AB12CD34", strPtr("lab-bot"), activeUser())
		require.NoError(t, err)

		robot, _ := robots.FindByID(context.Background(), robotID)
		assert.Equal(t, "lab-bot", robot.Name)
	})

	t.Run("second confirmation conflicts and never re-mints", func(t *testing.T) {
		svc, _, robots, robotID := setup(t)

		first, err := svc.Confirm(context.Background(), "AB12CD34", nil, activeUser())
		require.NoError(t, err)

		_, err = svc.Confirm(context.Background(), "AB12CD34", nil, activeUser())
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeAlreadyConfirmed, apperrors.GetCode(err))

		robot, _ := robots.FindByID(context.Background(), robotID)
		assert.Equal(t, first.IngestToken, *robot.IngestToken)
	})

	t.Run("expired code returns gone without minting", func(t *testing.T) {
		svc, codes, robots, robotID := setup(t)

		svc.now = func() time.Time { return time.Now().Add(testTTL + time.Minute) }

		_, err := svc.Confirm(context.Background(), "AB12CD34", nil, activeUser())
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodePairingExpired, apperrors.GetCode(err))

		// The expiry detected during Confirm is persisted.
		stored, _ := codes.FindByCode(context.Background(), "AB12CD34")
		assert.Equal(t, model.PairCodeStatusExpired, stored.Status)

		robot, _ := robots.FindByID(context.Background(), robotID)
		assert.Nil(t, robot.IngestToken)
		assert.Equal(t, model.RobotStatusPending, robot.Status)
	})

	t.Run("requires an active user", func(t *testing.T) {
		svc, _, _, _ := setup(t)

		_, err := svc.Confirm(context.Background(), "AB12CD34", nil, nil)
		assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.GetCode(err))

		inactive := activeUser()
		inactive.IsActive = false
		_, err = svc.Confirm(context.Background(), "AB12CD34", nil, inactive)
		assert.Equal(t, apperrors.ErrCodeUnauthorized, apperrors.GetCode(err))
	})

	t.Run("unknown code returns not found", func(t *testing.T) {
		svc, _, _, _ := setup(t)

		_, err := svc.Confirm(context.Background(), "NOPE0000", nil, activeUser())
		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})
}

func strPtr(s string) *string {
	return &s
}
