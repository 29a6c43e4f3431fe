package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"turfbooking/internal/auth"
	"turfbooking/internal/entities"
	"turfbooking/internal/service"
)

type BookingHandler struct {
	Service *service.BookingService
}

func NewBookingHandler(svc *service.BookingService) *BookingHandler {
	return &BookingHandler{Service: svc}
}

// CreateBooking handles POST /api/bookings.
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		respondError(w, errUnauthenticated)
		return
	}
	var req entities.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errInvalidBody)
		return
	}
	resp, err := h.Service.CreateBooking(user, req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusCreated, resp)
}

// BookGame handles POST /api/games/{id}/book.
func (h *BookingHandler) BookGame(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		respondError(w, errUnauthenticated)
		return
	}
	gameID := mux.Vars(r)["id"]
	resp, err := h.Service.BookGame(user, gameID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusCreated, resp)
}

// RetryPayment handles POST /api/bookings/retry.
func (h *BookingHandler) RetryPayment(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		respondError(w, errUnauthenticated)
		return
	}
	var req entities.RetryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errInvalidBody)
		return
	}
	resp, err := h.Service.RetryPayment(user, req.BookingID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, resp)
}

// MyBookings handles GET /api/bookings.
func (h *BookingHandler) MyBookings(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		respondError(w, errUnauthenticated)
		return
	}
	bookings, err := h.Service.MyBookings(user)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, bookings)
}

// VerifyPayment handles GET /api/verify-payment?session_id=...
func (h *BookingHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		respondError(w, errUnauthenticated)
		return
	}
	resp, err := h.Service.VerifyPayment(user, r.URL.Query().Get("session_id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, resp)
}

// CalendarLink handles GET /api/bookings/{id}/calendar.
func (h *BookingHandler) CalendarLink(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		respondError(w, errUnauthenticated)
		return
	}
	link, err := h.Service.CalendarLink(user, mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"calendar_url": link})
}
