package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/wolfpackcloud/robot-gateway/internal/audit"
	"github.com/wolfpackcloud/robot-gateway/internal/database"
	apperrors "github.com/wolfpackcloud/robot-gateway/internal/errors"
	"github.com/wolfpackcloud/robot-gateway/internal/model"
	"github.com/wolfpackcloud/robot-gateway/internal/repository"
	"github.com/wolfpackcloud/robot-gateway/internal/util"
)

type RegisterParams struct {
	Hostname     string
	Name         string
	IPAddress    *string
	Architecture model.Architecture
	PairCode     string
}

type RegisterResult struct {
	RobotID   string
	PairCode  string
	Status    model.PairCodeStatus
	ExpiresAt time.Time
	Message   string
}

type CodeInfo struct {
	Code  *model.PairCode
	Robot *model.Robot
}

type PollResult struct {
	Status     model.PairCodeStatus
	RobotID    *string
	RobotToken *string
	APIURL     string
	Message    string
}

type ConfirmResult struct {
	RobotID     string
	Status      model.RobotStatus
	IngestToken string
	Message     string
}

type PairingService struct {
	db         database.TxRunner
	codeRepo   repository.PairCodeRepository
	robotRepo  repository.RobotRepository
	codeTTL    time.Duration
	baseURL    string
	metricsURL string
	now        func() time.Time
}

func NewPairingService(
	db database.TxRunner,
	codeRepo repository.PairCodeRepository,
	robotRepo repository.RobotRepository,
	codeTTL time.Duration,
	baseURL string,
	metricsURL string,
) *PairingService {
	return &PairingService{
		db:         db,
		codeRepo:   codeRepo,
		robotRepo:  robotRepo,
		codeTTL:    codeTTL,
		baseURL:    baseURL,
		metricsURL: metricsURL,
		now:        time.Now,
	}
}

// Register creates a robot in pending status together with its pairing code.
// The two inserts share one transaction; a concurrent registration with the
// same code string loses either on the pre-check or on the partial unique
// index over pending codes.
func (s *PairingService) Register(ctx context.Context, params RegisterParams) (*RegisterResult, error) {
	code := util.NormalizePairCode(params.PairCode)

	if !util.IsValidPairCode(code) {
		return nil, apperrors.InvalidInput("pairCode", "must be exactly 8 uppercase letters or digits")
	}
	if !util.IsValidHostname(params.Hostname) {
		return nil, apperrors.MissingRequired("hostname")
	}
	if params.IPAddress != nil && !util.IsValidIP(*params.IPAddress) {
		return nil, apperrors.InvalidInput("ipAddress", "not a valid IP literal")
	}
	if params.Architecture == "" {
		params.Architecture = model.ArchARM64
	}
	if !params.Architecture.Valid() {
		return nil, apperrors.InvalidInput("architecture", "must be one of arm64, amd64, armhf")
	}

	name := params.Name
	if name == "" {
		name = params.Hostname
	}

	expiresAt := s.now().Add(s.codeTTL)

	var robot *model.Robot
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		codes := s.codeRepo.WithTx(tx)
		robots := s.robotRepo.WithTx(tx)

		existing, err := codes.FindPendingByCode(ctx, code)
		if err != nil {
			return apperrors.Database(err)
		}
		if existing != nil {
			return apperrors.CodeInUse()
		}

		robot, err = robots.Create(ctx, model.CreateRobotParams{
			ID:           uuid.NewString(),
			Name:         name,
			Hostname:     params.Hostname,
			IPAddress:    params.IPAddress,
			Architecture: params.Architecture,
		})
		if err != nil {
			return apperrors.Database(err)
		}

		_, err = codes.Create(ctx, model.CreatePairCodeParams{
			ID:        uuid.NewString(),
			Code:      code,
			RobotID:   robot.ID,
			ExpiresAt: expiresAt,
		})
		if err != nil {
			if repository.IsUniqueViolation(err) {
				return apperrors.CodeInUse()
			}
			return apperrors.Database(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("robotId", robot.ID).
		Str("code", util.MaskCode(code)).
		Time("expiresAt", expiresAt).
		Msg("robot registered")

	return &RegisterResult{
		RobotID:   robot.ID,
		PairCode:  code,
		Status:    model.PairCodeStatusPending,
		ExpiresAt: expiresAt,
		Message: fmt.Sprintf(
			"Robot registered. Confirm pairing code %s in the dashboard within %d minutes.",
			code, int(s.codeTTL.Minutes()),
		),
	}, nil
}

// resolve looks up a pairing code and applies lazy expiry: a pending code
// past its deadline is persisted as expired before anything else sees it.
func (s *PairingService) resolve(ctx context.Context, rawCode string) (*model.PairCode, error) {
	code := util.NormalizePairCode(rawCode)

	pc, err := s.codeRepo.FindByCode(ctx, code)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if pc == nil {
		return nil, apperrors.NotFound("Pairing code")
	}

	if pc.Status == model.PairCodeStatusPending && !s.now().Before(pc.ExpiresAt) {
		if err := s.codeRepo.MarkExpired(ctx, pc.ID); err != nil {
			return nil, apperrors.Database(err)
		}
		pc.Status = model.PairCodeStatusExpired
		log.Info().Str("code", util.MaskCode(code)).Msg("pairing code expired")
	}

	return pc, nil
}

func (s *PairingService) GetCodeInfo(ctx context.Context, rawCode string) (*CodeInfo, error) {
	pc, err := s.resolve(ctx, rawCode)
	if err != nil {
		return nil, err
	}

	robot, err := s.robotRepo.FindByID(ctx, pc.RobotID)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	return &CodeInfo{Code: pc, Robot: robot}, nil
}

// PollStatus is the agent-facing polling endpoint: idempotent and
// side-effect-free apart from the lazy expiry flip.
func (s *PairingService) PollStatus(ctx context.Context, rawCode string) (*PollResult, error) {
	pc, err := s.resolve(ctx, rawCode)
	if err != nil {
		return nil, err
	}

	switch pc.Status {
	case model.PairCodeStatusConfirmed:
		robot, err := s.robotRepo.FindByID(ctx, pc.RobotID)
		if err != nil {
			return nil, apperrors.Database(err)
		}
		if robot == nil {
			return nil, apperrors.NotFound("Robot")
		}
		return &PollResult{
			Status:     pc.Status,
			RobotID:    &robot.ID,
			RobotToken: robot.IngestToken,
			APIURL:     s.metricsURL,
			Message:    "Pairing confirmed. Use the token to submit metrics.",
		}, nil

	case model.PairCodeStatusExpired:
		return &PollResult{
			Status:  pc.Status,
			APIURL:  s.baseURL,
			Message: "Pairing code expired. Register again.",
		}, nil

	default:
		return &PollResult{
			Status:  pc.Status,
			RobotID: &pc.RobotID,
			APIURL:  s.baseURL,
			Message: "Waiting for user confirmation.",
		}, nil
	}
}

// Confirm binds the robot to the acting user and mints its ingest token.
// The locked re-read inside the transaction guarantees at most one mint per
// code regardless of concurrent confirmations.
func (s *PairingService) Confirm(ctx context.Context, rawCode string, robotName *string, user *model.User) (*ConfirmResult, error) {
	if user == nil || !user.IsActive {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	code := util.NormalizePairCode(rawCode)
	now := s.now()

	var result *ConfirmResult
	var confirmErr *apperrors.AppError

	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		codes := s.codeRepo.WithTx(tx)
		robots := s.robotRepo.WithTx(tx)

		pc, err := codes.FindByCodeForUpdate(ctx, code)
		if err != nil {
			return apperrors.Database(err)
		}
		if pc == nil {
			confirmErr = apperrors.NotFound("Pairing code")
			return nil
		}

		switch pc.Status {
		case model.PairCodeStatusConfirmed:
			confirmErr = apperrors.AlreadyConfirmed()
			return nil
		case model.PairCodeStatusExpired:
			confirmErr = apperrors.PairingExpired()
			return nil
		}

		// Expiry detected here for the first time still has to be
		// persisted, so it is committed rather than rolled back with
		// the Gone error.
		if !now.Before(pc.ExpiresAt) {
			if err := codes.MarkExpired(ctx, pc.ID); err != nil {
				return apperrors.Database(err)
			}
			confirmErr = apperrors.PairingExpired()
			return nil
		}

		token, err := util.GenerateToken()
		if err != nil {
			return apperrors.Internal("Failed to generate ingest token").WithCause(err)
		}

		robot, err := robots.Activate(ctx, pc.RobotID, user.ID, token, robotName, now)
		if err != nil {
			return apperrors.Database(err)
		}
		if robot == nil {
			confirmErr = apperrors.NotFound("Robot")
			return nil
		}

		if err := codes.MarkConfirmed(ctx, pc.ID, now); err != nil {
			return apperrors.Database(err)
		}

		result = &ConfirmResult{
			RobotID:     robot.ID,
			Status:      robot.Status,
			IngestToken: token,
			Message:     fmt.Sprintf("Robot %q is now paired with %s.", robot.Name, user.Name),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if confirmErr != nil {
		return nil, confirmErr
	}

	audit.Log(ctx, audit.Event{
		Type:   audit.EventPairConfirm,
		UserID: user.ID,
		Details: map[string]interface{}{
			"robot_id": result.RobotID,
			"code":     util.MaskCode(code),
		},
	})

	log.Info().
		Str("robotId", result.RobotID).
		Str("userId", user.ID).
		Str("code", util.MaskCode(code)).
		Msg("pairing confirmed")

	return result, nil
}
