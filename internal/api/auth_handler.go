package api

import (
	"encoding/json"
	"net/http"

	apperrors "turfbooking/internal/errors"
	"turfbooking/internal/service"
)

type AuthHandler struct {
	service service.AuthService
}

func NewAuthHandler(svc service.AuthService) *AuthHandler {
	return &AuthHandler{service: svc}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errInvalidBody)
		return
	}

	token, err := h.service.Login(req.Email, req.Password)
	if err != nil {
		respondError(w, apperrors.ErrUnauthorized("Invalid credentials"))
		return
	}
	respondData(w, http.StatusOK, LoginResponse{Token: token})
}
