package handler

import (
	"net/http"
	"time"

	"github.com/wolfpackcloud/robot-gateway/internal/httputil"
	"github.com/wolfpackcloud/robot-gateway/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func formatRobot(robot *model.Robot) map[string]any {
	return map[string]any{
		"id":           robot.ID,
		"name":         robot.Name,
		"hostname":     robot.Hostname,
		"ipAddress":    robot.IPAddress,
		"architecture": robot.Architecture,
		"status":       robot.Status,
		"description":  robot.Description,
		"ownerId":      robot.OwnerID,
		"createdAt":    robot.CreatedAt.Format(time.RFC3339),
		"updatedAt":    robot.UpdatedAt.Format(time.RFC3339),
		"lastSeenAt":   formatTime(robot.LastSeenAt),
	}
}

// formatRobotDetail includes the ingest token; API-only detail view.
func formatRobotDetail(robot *model.Robot) map[string]any {
	detail := formatRobot(robot)
	detail["ingestToken"] = robot.IngestToken
	return detail
}
