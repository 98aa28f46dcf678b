package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/wolfpackcloud/robot-gateway/internal/errors"
	"github.com/wolfpackcloud/robot-gateway/internal/middleware"
	"github.com/wolfpackcloud/robot-gateway/internal/model"
	"github.com/wolfpackcloud/robot-gateway/internal/service"
)

type RobotsHandler struct {
	robotService *service.RobotService
}

func NewRobotsHandler(robotService *service.RobotService) *RobotsHandler {
	return &RobotsHandler{robotService: robotService}
}

func (h *RobotsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/heartbeat", h.Heartbeat)

	return r
}

// GET /api/robots?status=&search=&skip=&limit=
func (h *RobotsHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	page := ParsePagination(r)

	params := service.ListRobotsParams{
		Search: r.URL.Query().Get("search"),
		Skip:   page.Skip,
		Limit:  page.Limit,
	}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := model.RobotStatus(raw)
		if !status.Valid() {
			writeError(w, apperrors.InvalidInput("status", "must be one of pending, active, inactive, error"))
			return
		}
		params.Status = &status
	}

	robots, total, err := h.robotService.List(r.Context(), user, params)
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]map[string]any, 0, len(robots))
	for i := range robots {
		items = append(items, formatRobot(&robots[i]))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"robots": items,
		"total":  total,
	})
}

// GET /api/robots/{id}
func (h *RobotsHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	robot, err := h.robotService.Get(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, formatRobotDetail(robot))
}

// PATCH /api/robots/{id}
func (h *RobotsHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req struct {
		Name        *string            `json:"name"`
		Description *string            `json:"description"`
		IPAddress   *string            `json:"ipAddress"`
		Status      *model.RobotStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	robot, err := h.robotService.Update(r.Context(), user, chi.URLParam(r, "id"), model.UpdateRobotParams{
		Name:        req.Name,
		Description: req.Description,
		IPAddress:   req.IPAddress,
		Status:      req.Status,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, formatRobot(robot))
}

// DELETE /api/robots/{id}
func (h *RobotsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	if err := h.robotService.Delete(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// POST /api/robots/{id}/heartbeat
func (h *RobotsHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	robot, err := h.robotService.Heartbeat(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, formatRobot(robot))
}
