package db

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Slot statuses. The status column is the single-writer token for a slot:
// whoever flips available -> booked owns the slot until release or payment.
const (
	SlotAvailable = "available"
	SlotBooked    = "booked"
)

// Booking statuses.
const (
	BookingPending = "pending"
	BookingPaid    = "paid"
	BookingFailed  = "failed"
)

// Game statuses.
const (
	GameOpen           = "open"
	GameFull           = "full"
	GameBookingPending = "booking_pending"
	GameCancelled      = "cancelled"
	GameCompleted      = "completed"
)

// Game booking statuses.
const (
	GameNotBooked = "not_booked"
	GameBooked    = "booked"
)

// Join request statuses.
const (
	JoinPending  = "pending"
	JoinApproved = "approved"
	JoinRejected = "rejected"
)

type User struct {
	ID           int64
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	CreatedAt    time.Time
}

type Venue struct {
	ID        int64
	Name      string
	City      string
	Latitude  float64
	Longitude float64
}

type SubVenue struct {
	ID      int64
	VenueID int64
	Name    string
	Sports  []string
}

// SlotSheet groups all bookable slots of one sub-venue on one date.
type SlotSheet struct {
	ID         int64
	SubVenueID int64
	Date       time.Time
}

// Slot is one bookable interval inside a sheet. Prices holds the raw
// per-sport price JSON; it is normalized by entities.ParseSportPrices at
// the boundary and never inspected raw past the service layer.
type Slot struct {
	ID             int64
	SheetID        int64
	StartTime      time.Time
	EndTime        time.Time
	Status         string
	BookedForSport string
	Prices         json.RawMessage
	UpdatedAt      time.Time
}

// Booking is one purchase attempt for a slot. Amount is the price snapshot
// in minor currency units taken at creation time and never recomputed.
type Booking struct {
	ID                    string
	UserID                int64
	VenueID               int64
	SubVenueID            int64
	Sport                 string
	VenueLat              float64
	VenueLng              float64
	StartTime             time.Time
	EndTime               time.Time
	SheetID               int64
	SlotID                int64
	Amount                int64
	Currency              string
	StripeSessionID       string
	StripePaymentIntentID sql.NullString
	Status                string
	GameID                sql.NullString
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Game aggregates players before a slot is booked on their behalf.
type Game struct {
	ID            string
	HostID        int64
	Sport         string
	VenueID       int64
	SubVenueID    int64
	SheetID       int64
	SlotID        int64
	MinPlayers    int
	MaxPlayers    int
	Status        string
	BookingStatus string
	StartTime     time.Time
	EndTime       time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type JoinRequest struct {
	ID        int64
	GameID    string
	UserID    int64
	Status    string
	CreatedAt time.Time
}
