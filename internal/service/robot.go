package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/wolfpackcloud/robot-gateway/internal/audit"
	"github.com/wolfpackcloud/robot-gateway/internal/database"
	apperrors "github.com/wolfpackcloud/robot-gateway/internal/errors"
	"github.com/wolfpackcloud/robot-gateway/internal/model"
	"github.com/wolfpackcloud/robot-gateway/internal/repository"
	"github.com/wolfpackcloud/robot-gateway/internal/util"
)

type ListRobotsParams struct {
	Status *model.RobotStatus
	Search string
	Skip   int
	Limit  int
}

type RobotService struct {
	db        database.TxRunner
	robotRepo repository.RobotRepository
	codeRepo  repository.PairCodeRepository
	now       func() time.Time
}

func NewRobotService(
	db database.TxRunner,
	robotRepo repository.RobotRepository,
	codeRepo repository.PairCodeRepository,
) *RobotService {
	return &RobotService{
		db:        db,
		robotRepo: robotRepo,
		codeRepo:  codeRepo,
		now:       time.Now,
	}
}

// List returns the user's robots (all robots for admins) plus the unpaged total.
func (s *RobotService) List(ctx context.Context, user *model.User, params ListRobotsParams) ([]model.Robot, int, error) {
	filter := model.RobotFilter{
		Status: params.Status,
		Search: params.Search,
		Limit:  params.Limit,
		Offset: params.Skip,
	}
	if !user.IsAdmin() {
		filter.OwnerID = &user.ID
	}

	total, err := s.robotRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.Database(err)
	}

	robots, err := s.robotRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.Database(err)
	}

	return robots, total, nil
}

// load fetches a robot and enforces owner/admin access.
func (s *RobotService) load(ctx context.Context, user *model.User, id string) (*model.Robot, error) {
	robot, err := s.robotRepo.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if robot == nil {
		return nil, apperrors.NotFound("Robot")
	}
	if !user.CanAccessRobot(robot) {
		return nil, apperrors.Forbidden("You do not have access to this robot")
	}
	return robot, nil
}

func (s *RobotService) Get(ctx context.Context, user *model.User, id string) (*model.Robot, error) {
	return s.load(ctx, user, id)
}

func (s *RobotService) Update(ctx context.Context, user *model.User, id string, params model.UpdateRobotParams) (*model.Robot, error) {
	if _, err := s.load(ctx, user, id); err != nil {
		return nil, err
	}

	if params.Status != nil && !params.Status.Valid() {
		return nil, apperrors.InvalidInput("status", "must be one of pending, active, inactive, error")
	}
	if params.IPAddress != nil && !util.IsValidIP(*params.IPAddress) {
		return nil, apperrors.InvalidInput("ipAddress", "not a valid IP literal")
	}
	if params.Name != nil && *params.Name == "" {
		return nil, apperrors.InvalidInput("name", "must not be empty")
	}

	robot, err := s.robotRepo.Update(ctx, id, params)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if robot == nil {
		return nil, apperrors.NotFound("Robot")
	}
	return robot, nil
}

// Delete removes the robot and its pairing codes in one transaction so no
// orphaned code can reference a missing robot.
func (s *RobotService) Delete(ctx context.Context, user *model.User, id string) error {
	if _, err := s.load(ctx, user, id); err != nil {
		return err
	}

	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.codeRepo.WithTx(tx).DeleteByRobotID(ctx, id); err != nil {
			return apperrors.Database(err)
		}
		if err := s.robotRepo.WithTx(tx).Delete(ctx, id); err != nil {
			return apperrors.Database(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	audit.Log(ctx, audit.Event{
		Type:   audit.EventRobotDelete,
		UserID: user.ID,
		Details: map[string]interface{}{
			"robot_id": id,
		},
	})

	log.Info().Str("robotId", id).Str("userId", user.ID).Msg("robot deleted")
	return nil
}

// Heartbeat always refreshes last_seen_at; only an inactive robot is promoted
// back to active by it.
func (s *RobotService) Heartbeat(ctx context.Context, user *model.User, id string) (*model.Robot, error) {
	if _, err := s.load(ctx, user, id); err != nil {
		return nil, err
	}

	robot, err := s.robotRepo.Heartbeat(ctx, id, s.now())
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if robot == nil {
		return nil, apperrors.NotFound("Robot")
	}
	return robot, nil
}
