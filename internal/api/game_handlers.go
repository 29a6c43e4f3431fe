package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"turfbooking/internal/auth"
	"turfbooking/internal/entities"
	"turfbooking/internal/service"
)

type GameHandler struct {
	Service *service.GameService
}

func NewGameHandler(svc *service.GameService) *GameHandler {
	return &GameHandler{Service: svc}
}

// CreateGame handles POST /api/games.
func (h *GameHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		respondError(w, errUnauthenticated)
		return
	}
	var req entities.CreateGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errInvalidBody)
		return
	}
	resp, err := h.Service.CreateGame(user, req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusCreated, resp)
}

// GetGame handles GET /api/games/{id}.
func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	resp, err := h.Service.GetGame(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, resp)
}

// RequestJoin handles POST /api/games/{id}/join.
func (h *GameHandler) RequestJoin(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		respondError(w, errUnauthenticated)
		return
	}
	if err := h.Service.RequestJoin(user, mux.Vars(r)["id"]); err != nil {
		respondError(w, err)
		return
	}
	respondMessage(w, http.StatusOK, "Join request submitted")
}

// ApproveJoin handles POST /api/games/{id}/approve.
func (h *GameHandler) ApproveJoin(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		respondError(w, errUnauthenticated)
		return
	}
	var req entities.ApproveJoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errInvalidBody)
		return
	}
	if err := h.Service.ApproveJoin(user, mux.Vars(r)["id"], req.UserID); err != nil {
		respondError(w, err)
		return
	}
	respondMessage(w, http.StatusOK, "Player approved")
}

// LeaveGame handles POST /api/games/{id}/leave.
func (h *GameHandler) LeaveGame(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		respondError(w, errUnauthenticated)
		return
	}
	if err := h.Service.LeaveGame(user, mux.Vars(r)["id"]); err != nil {
		respondError(w, err)
		return
	}
	respondMessage(w, http.StatusOK, "Left the game")
}

// CancelGame handles DELETE /api/games/{id}.
func (h *GameHandler) CancelGame(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		respondError(w, errUnauthenticated)
		return
	}
	if err := h.Service.CancelGame(user, mux.Vars(r)["id"]); err != nil {
		respondError(w, err)
		return
	}
	respondMessage(w, http.StatusOK, "Game cancelled")
}
