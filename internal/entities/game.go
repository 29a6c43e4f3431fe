package entities

import "time"

type CreateGameRequest struct {
	SubVenueID int64  `json:"sub_venue_id"`
	SheetID    int64  `json:"time_slot_id"`
	SlotID     int64  `json:"slot_id"`
	Sport      string `json:"sport"`
	MinPlayers int    `json:"min_players"`
	MaxPlayers int    `json:"max_players"`
}

type ApproveJoinRequest struct {
	UserID int64 `json:"user_id"`
}

type GameResponse struct {
	ID            string    `json:"id"`
	HostID        int64     `json:"host_id"`
	Sport         string    `json:"sport"`
	SubVenueID    int64     `json:"sub_venue_id"`
	MinPlayers    int       `json:"min_players"`
	MaxPlayers    int       `json:"max_players"`
	PlayerCount   int       `json:"player_count"`
	Status        string    `json:"status"`
	BookingStatus string    `json:"booking_status"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
}
