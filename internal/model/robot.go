package model

import (
	"time"
)

type Robot struct {
	ID           string       `db:"id" json:"id"`
	Name         string       `db:"name" json:"name"`
	Hostname     string       `db:"hostname" json:"hostname"`
	IPAddress    *string      `db:"ip_address" json:"ipAddress,omitempty"`
	Architecture Architecture `db:"architecture" json:"architecture"`
	Status       RobotStatus  `db:"status" json:"status"`
	IngestToken  *string      `db:"ingest_token" json:"-"`
	Description  *string      `db:"description" json:"description,omitempty"`
	OwnerID      *string      `db:"owner_id" json:"ownerId,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updatedAt"`
	LastSeenAt   *time.Time   `db:"last_seen_at" json:"lastSeenAt,omitempty"`
}

type CreateRobotParams struct {
	ID           string
	Name         string
	Hostname     string
	IPAddress    *string
	Architecture Architecture
}

// UpdateRobotParams carries the optional fields of a partial update.
// Nil means "leave unchanged".
type UpdateRobotParams struct {
	Name        *string
	Description *string
	IPAddress   *string
	Status      *RobotStatus
}

type RobotFilter struct {
	OwnerID *string
	Status  *RobotStatus
	Search  string
	Limit   int
	Offset  int
}

// RobotRef is the minimal projection returned by bulk status updates.
type RobotRef struct {
	ID   string `db:"id"`
	Name string `db:"name"`
}
