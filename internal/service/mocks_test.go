package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/wolfpackcloud/robot-gateway/internal/database"
	"github.com/wolfpackcloud/robot-gateway/internal/model"
	"github.com/wolfpackcloud/robot-gateway/internal/repository"
)

// mockTxRunner invokes the function directly; the mock repositories ignore
// the nil transaction handle.
type mockTxRunner struct{}

func (mockTxRunner) WithTx(ctx context.Context, fn database.TxFunc) error {
	return fn(nil)
}

var _ database.TxRunner = mockTxRunner{}

type mockPairCodeRepo struct {
	codes map[string]*model.PairCode // by id
}

func newMockPairCodeRepo() *mockPairCodeRepo {
	return &mockPairCodeRepo{codes: make(map[string]*model.PairCode)}
}

func (m *mockPairCodeRepo) WithTx(tx *sqlx.Tx) repository.PairCodeRepository {
	return m
}

func (m *mockPairCodeRepo) latestByCode(code string) *model.PairCode {
	var matches []*model.PairCode
	for _, pc := range m.codes {
		if pc.Code == code {
			matches = append(matches, pc)
		}
	}
	if len(matches) == 0 {
		return nil
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches[0]
}

func (m *mockPairCodeRepo) FindByCode(ctx context.Context, code string) (*model.PairCode, error) {
	pc := m.latestByCode(code)
	if pc == nil {
		return nil, nil
	}
	copied := *pc
	return &copied, nil
}

func (m *mockPairCodeRepo) FindByCodeForUpdate(ctx context.Context, code string) (*model.PairCode, error) {
	return m.FindByCode(ctx, code)
}

func (m *mockPairCodeRepo) FindPendingByCode(ctx context.Context, code string) (*model.PairCode, error) {
	pc := m.latestByCode(code)
	if pc == nil || pc.Status != model.PairCodeStatusPending {
		return nil, nil
	}
	copied := *pc
	return &copied, nil
}

func (m *mockPairCodeRepo) Create(ctx context.Context, params model.CreatePairCodeParams) (*model.PairCode, error) {
	if existing := m.latestByCode(params.Code); existing != nil && existing.Status == model.PairCodeStatusPending {
		return nil, fmt.Errorf("unique violation on pending code %s", params.Code)
	}
	pc := &model.PairCode{
		ID:        params.ID,
		Code:      params.Code,
		RobotID:   params.RobotID,
		Status:    model.PairCodeStatusPending,
		CreatedAt: time.Now(),
		ExpiresAt: params.ExpiresAt,
	}
	m.codes[pc.ID] = pc
	copied := *pc
	return &copied, nil
}

func (m *mockPairCodeRepo) MarkExpired(ctx context.Context, id string) error {
	if pc, ok := m.codes[id]; ok && pc.Status == model.PairCodeStatusPending {
		pc.Status = model.PairCodeStatusExpired
	}
	return nil
}

func (m *mockPairCodeRepo) MarkConfirmed(ctx context.Context, id string, confirmedAt time.Time) error {
	if pc, ok := m.codes[id]; ok && pc.Status == model.PairCodeStatusPending {
		pc.Status = model.PairCodeStatusConfirmed
		pc.ConfirmedAt = &confirmedAt
	}
	return nil
}

func (m *mockPairCodeRepo) DeleteByRobotID(ctx context.Context, robotID string) error {
	for id, pc := range m.codes {
		if pc.RobotID == robotID {
			delete(m.codes, id)
		}
	}
	return nil
}

var _ repository.PairCodeRepository = (*mockPairCodeRepo)(nil)

type mockRobotRepo struct {
	robots map[string]*model.Robot
}

func newMockRobotRepo() *mockRobotRepo {
	return &mockRobotRepo{robots: make(map[string]*model.Robot)}
}

func (m *mockRobotRepo) WithTx(tx *sqlx.Tx) repository.RobotRepository {
	return m
}

func (m *mockRobotRepo) FindByID(ctx context.Context, id string) (*model.Robot, error) {
	if robot, ok := m.robots[id]; ok {
		copied := *robot
		return &copied, nil
	}
	return nil, nil
}

func (m *mockRobotRepo) FindByIngestToken(ctx context.Context, token string) (*model.Robot, error) {
	for _, robot := range m.robots {
		if robot.IngestToken != nil && *robot.IngestToken == token {
			copied := *robot
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockRobotRepo) matches(robot *model.Robot, filter model.RobotFilter) bool {
	if filter.OwnerID != nil {
		if robot.OwnerID == nil || *robot.OwnerID != *filter.OwnerID {
			return false
		}
	}
	if filter.Status != nil && robot.Status != *filter.Status {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(robot.Name), needle) &&
			!strings.Contains(strings.ToLower(robot.Hostname), needle) {
			return false
		}
	}
	return true
}

func (m *mockRobotRepo) sortedMatches(filter model.RobotFilter) []model.Robot {
	var matches []model.Robot
	for _, robot := range m.robots {
		if m.matches(robot, filter) {
			matches = append(matches, *robot)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches
}

func (m *mockRobotRepo) FindAll(ctx context.Context, filter model.RobotFilter) ([]model.Robot, error) {
	matches := m.sortedMatches(filter)

	if filter.Offset >= len(matches) {
		return nil, nil
	}
	matches = matches[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matches) {
		matches = matches[:filter.Limit]
	}
	return matches, nil
}

func (m *mockRobotRepo) Count(ctx context.Context, filter model.RobotFilter) (int, error) {
	return len(m.sortedMatches(filter)), nil
}

func (m *mockRobotRepo) Create(ctx context.Context, params model.CreateRobotParams) (*model.Robot, error) {
	now := time.Now()
	robot := &model.Robot{
		ID:           params.ID,
		Name:         params.Name,
		Hostname:     params.Hostname,
		IPAddress:    params.IPAddress,
		Architecture: params.Architecture,
		Status:       model.RobotStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.robots[robot.ID] = robot
	copied := *robot
	return &copied, nil
}

func (m *mockRobotRepo) Update(ctx context.Context, id string, params model.UpdateRobotParams) (*model.Robot, error) {
	robot, ok := m.robots[id]
	if !ok {
		return nil, nil
	}
	if params.Name != nil {
		robot.Name = *params.Name
	}
	if params.Description != nil {
		robot.Description = params.Description
	}
	if params.IPAddress != nil {
		robot.IPAddress = params.IPAddress
	}
	if params.Status != nil {
		robot.Status = *params.Status
	}
	robot.UpdatedAt = time.Now()
	copied := *robot
	return &copied, nil
}

func (m *mockRobotRepo) Activate(ctx context.Context, id, ownerID, token string, name *string, now time.Time) (*model.Robot, error) {
	robot, ok := m.robots[id]
	if !ok {
		return nil, nil
	}
	robot.Status = model.RobotStatusActive
	robot.OwnerID = &ownerID
	robot.IngestToken = &token
	if name != nil {
		robot.Name = *name
	}
	robot.LastSeenAt = &now
	robot.UpdatedAt = now
	copied := *robot
	return &copied, nil
}

func (m *mockRobotRepo) TouchLastSeen(ctx context.Context, id string, now time.Time) error {
	if robot, ok := m.robots[id]; ok {
		robot.LastSeenAt = &now
	}
	return nil
}

func (m *mockRobotRepo) Heartbeat(ctx context.Context, id string, now time.Time) (*model.Robot, error) {
	robot, ok := m.robots[id]
	if !ok {
		return nil, nil
	}
	robot.LastSeenAt = &now
	if robot.Status == model.RobotStatusInactive {
		robot.Status = model.RobotStatusActive
	}
	robot.UpdatedAt = now
	copied := *robot
	return &copied, nil
}

func (m *mockRobotRepo) MarkInactiveSince(ctx context.Context, threshold time.Time) ([]model.RobotRef, error) {
	var demoted []model.RobotRef
	for _, robot := range m.robots {
		if robot.Status == model.RobotStatusActive &&
			robot.LastSeenAt != nil && robot.LastSeenAt.Before(threshold) {
			robot.Status = model.RobotStatusInactive
			demoted = append(demoted, model.RobotRef{ID: robot.ID, Name: robot.Name})
		}
	}
	return demoted, nil
}

func (m *mockRobotRepo) Delete(ctx context.Context, id string) error {
	delete(m.robots, id)
	return nil
}

var _ repository.RobotRepository = (*mockRobotRepo)(nil)
