package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/wolfpackcloud/robot-gateway/internal/errors"
	"github.com/wolfpackcloud/robot-gateway/internal/middleware"
	"github.com/wolfpackcloud/robot-gateway/internal/model"
	"github.com/wolfpackcloud/robot-gateway/internal/service"
)

type PairingHandler struct {
	pairingService *service.PairingService
	authMiddleware func(http.Handler) http.Handler
}

func NewPairingHandler(pairingService *service.PairingService, authMiddleware func(http.Handler) http.Handler) *PairingHandler {
	return &PairingHandler{
		pairingService: pairingService,
		authMiddleware: authMiddleware,
	}
}

func (h *PairingHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Register)
	r.Get("/{code}", h.GetCodeInfo)
	r.Get("/{code}/status", h.PollStatus)
	r.With(h.authMiddleware).Post("/{code}/confirm", h.Confirm)

	return r
}

// POST /api/pair
// Called by the agent on the robot to register with a self-generated code.
func (h *PairingHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Hostname     string             `json:"hostname"`
		Name         string             `json:"name"`
		IPAddress    *string            `json:"ipAddress"`
		Architecture model.Architecture `json:"architecture"`
		PairCode     string             `json:"pairCode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	result, err := h.pairingService.Register(r.Context(), service.RegisterParams{
		Hostname:     req.Hostname,
		Name:         req.Name,
		IPAddress:    req.IPAddress,
		Architecture: req.Architecture,
		PairCode:     req.PairCode,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"robotId":   result.RobotID,
		"pairCode":  result.PairCode,
		"status":    result.Status,
		"expiresAt": result.ExpiresAt.Format(time.RFC3339),
		"message":   result.Message,
	})
}

// GET /api/pair/{code}
func (h *PairingHandler) GetCodeInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.pairingService.GetCodeInfo(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{
		"code":        info.Code.Code,
		"status":      info.Code.Status,
		"createdAt":   info.Code.CreatedAt.Format(time.RFC3339),
		"expiresAt":   info.Code.ExpiresAt.Format(time.RFC3339),
		"confirmedAt": formatTime(info.Code.ConfirmedAt),
	}
	if info.Robot != nil {
		resp["robot"] = map[string]any{
			"id":       info.Robot.ID,
			"name":     info.Robot.Name,
			"hostname": info.Robot.Hostname,
			"status":   info.Robot.Status,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// GET /api/pair/{code}/status
// Polled by the agent after registration until the pairing is confirmed.
func (h *PairingHandler) PollStatus(w http.ResponseWriter, r *http.Request) {
	result, err := h.pairingService.PollStatus(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     result.Status,
		"robotId":    result.RobotID,
		"robotToken": result.RobotToken,
		"apiUrl":     result.APIURL,
		"message":    result.Message,
	})
}

// POST /api/pair/{code}/confirm
// Requires an authenticated user; binds the robot and returns the minted token.
func (h *PairingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req struct {
		RobotName *string `json:"robotName"`
	}
	// Body is optional for confirmation.
	json.NewDecoder(r.Body).Decode(&req)

	result, err := h.pairingService.Confirm(r.Context(), chi.URLParam(r, "code"), req.RobotName, user)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"robotId":     result.RobotID,
		"status":      result.Status,
		"ingestToken": result.IngestToken,
		"message":     result.Message,
	})
}
