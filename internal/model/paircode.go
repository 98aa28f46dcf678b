package model

import (
	"time"
)

type PairCode struct {
	ID          string         `db:"id" json:"id"`
	Code        string         `db:"code" json:"code"`
	RobotID     string         `db:"robot_id" json:"robotId"`
	Status      PairCodeStatus `db:"status" json:"status"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	ExpiresAt   time.Time      `db:"expires_at" json:"expiresAt"`
	ConfirmedAt *time.Time     `db:"confirmed_at" json:"confirmedAt,omitempty"`
}

type CreatePairCodeParams struct {
	ID        string
	Code      string
	RobotID   string
	ExpiresAt time.Time
}
