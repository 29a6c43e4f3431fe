package entities

import "time"

// BookingRequest is the body of a direct booking call.
type BookingRequest struct {
	SubVenueID int64  `json:"sub_venue_id"`
	SheetID    int64  `json:"time_slot_id"`
	SlotID     int64  `json:"slot_id"`
	Sport      string `json:"sport"`
}

// CheckoutResponse carries the redirect target of a freshly created
// payment session back to the caller.
type CheckoutResponse struct {
	BookingID   string `json:"booking_id"`
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

type RetryRequest struct {
	BookingID string `json:"booking_id"`
}

type BookingResponse struct {
	ID          string    `json:"id"`
	VenueID     int64     `json:"venue_id"`
	SubVenueID  int64     `json:"sub_venue_id"`
	Sport       string    `json:"sport"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	GameID      string    `json:"game_id,omitempty"`
	VenueLat    float64   `json:"venue_lat"`
	VenueLng    float64   `json:"venue_lng"`
	CreatedAt   time.Time `json:"created_at"`
}

type PaymentStatusResponse struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
}
