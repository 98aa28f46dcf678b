package model

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type RobotStatus string

const (
	RobotStatusPending  RobotStatus = "pending"
	RobotStatusActive   RobotStatus = "active"
	RobotStatusInactive RobotStatus = "inactive"
	RobotStatusError    RobotStatus = "error"
)

func (s RobotStatus) Valid() bool {
	switch s {
	case RobotStatusPending, RobotStatusActive, RobotStatusInactive, RobotStatusError:
		return true
	}
	return false
}

type Architecture string

const (
	ArchARM64 Architecture = "arm64"
	ArchAMD64 Architecture = "amd64"
	ArchARMHF Architecture = "armhf"
)

func (a Architecture) Valid() bool {
	switch a {
	case ArchARM64, ArchAMD64, ArchARMHF:
		return true
	}
	return false
}

type PairCodeStatus string

const (
	PairCodeStatusPending   PairCodeStatus = "pending"
	PairCodeStatusConfirmed PairCodeStatus = "confirmed"
	PairCodeStatusExpired   PairCodeStatus = "expired"
)
