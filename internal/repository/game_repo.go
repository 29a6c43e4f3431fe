package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"turfbooking/internal/db"
)

var (
	ErrGameNotFound    = errors.New("game not found")
	ErrNotInGame       = errors.New("user is not an approved player of this game")
	ErrNoPendingJoin   = errors.New("no pending join request for this user")
	ErrAlreadyInvolved = errors.New("user already requested or joined this game")
)

type GameRepository struct {
	DB *sql.DB
}

func NewGameRepository(database *sql.DB) *GameRepository {
	return &GameRepository{DB: database}
}

const gameColumns = `
	id, host_id, sport, venue_id, sub_venue_id, sheet_id, slot_id,
	min_players, max_players, status, booking_status, start_time, end_time,
	created_at, updated_at`

func (r *GameRepository) Create(g *db.Game) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return fmt.Errorf("error starting game create transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO games
		(id, host_id, sport, venue_id, sub_venue_id, sheet_id, slot_id,
		 min_players, max_players, status, booking_status, start_time, end_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err = tx.Exec(query,
		g.ID, g.HostID, g.Sport, g.VenueID, g.SubVenueID, g.SheetID, g.SlotID,
		g.MinPlayers, g.MaxPlayers, g.Status, g.BookingStatus, g.StartTime, g.EndTime,
		g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("error creating game %s: %w", g.ID, err)
	}

	// The host is always an approved player.
	_, err = tx.Exec(`INSERT INTO game_players (game_id, user_id) VALUES ($1, $2)`, g.ID, g.HostID)
	if err != nil {
		return fmt.Errorf("error adding host to game %s: %w", g.ID, err)
	}
	return tx.Commit()
}

func (r *GameRepository) GetByID(id string) (*db.Game, error) {
	var g db.Game
	query := `SELECT` + gameColumns + ` FROM games WHERE id = $1`
	err := r.DB.QueryRow(query, id).Scan(
		&g.ID, &g.HostID, &g.Sport, &g.VenueID, &g.SubVenueID, &g.SheetID, &g.SlotID,
		&g.MinPlayers, &g.MaxPlayers, &g.Status, &g.BookingStatus, &g.StartTime, &g.EndTime,
		&g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("error querying game %s: %w", id, err)
	}
	return &g, nil
}

func (r *GameRepository) CountApprovedPlayers(gameID string) (int, error) {
	var count int
	err := r.DB.QueryRow(`SELECT COUNT(*) FROM game_players WHERE game_id = $1`, gameID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting players for game %s: %w", gameID, err)
	}
	return count, nil
}

func (r *GameRepository) IsApprovedPlayer(gameID string, userID int64) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(
		`SELECT EXISTS (SELECT 1 FROM game_players WHERE game_id = $1 AND user_id = $2)`,
		gameID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking membership for game %s: %w", gameID, err)
	}
	return exists, nil
}

func (r *GameRepository) CreateJoinRequest(gameID string, userID int64) error {
	var involved bool
	err := r.DB.QueryRow(`
		SELECT EXISTS (SELECT 1 FROM game_players WHERE game_id = $1 AND user_id = $2)
		    OR EXISTS (SELECT 1 FROM game_join_requests WHERE game_id = $1 AND user_id = $2 AND status = $3)`,
		gameID, userID, db.JoinPending).Scan(&involved)
	if err != nil {
		return fmt.Errorf("error checking join state for game %s: %w", gameID, err)
	}
	if involved {
		return ErrAlreadyInvolved
	}
	_, err = r.DB.Exec(
		`INSERT INTO game_join_requests (game_id, user_id, status, created_at) VALUES ($1, $2, $3, NOW())`,
		gameID, userID, db.JoinPending)
	if err != nil {
		return fmt.Errorf("error creating join request for game %s: %w", gameID, err)
	}
	return nil
}

// ApproveJoinRequest moves a requester into the approved player set. The
// request row update, the player insert, and the possible open -> full
// transition are one transaction: a fault between them must not leave the
// game partially updated.
func (r *GameRepository) ApproveJoinRequest(gameID string, userID int64, maxPlayers int) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return fmt.Errorf("error starting approve transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE game_join_requests SET status = $1 WHERE game_id = $2 AND user_id = $3 AND status = $4`,
		db.JoinApproved, gameID, userID, db.JoinPending)
	if err != nil {
		return fmt.Errorf("error approving join request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows for join approval: %w", err)
	}
	if affected == 0 {
		return ErrNoPendingJoin
	}

	_, err = tx.Exec(`INSERT INTO game_players (game_id, user_id) VALUES ($1, $2)`, gameID, userID)
	if err != nil {
		return fmt.Errorf("error adding player to game %s: %w", gameID, err)
	}

	var count int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM game_players WHERE game_id = $1`, gameID).Scan(&count); err != nil {
		return fmt.Errorf("error counting players in approve transaction: %w", err)
	}
	if count >= maxPlayers {
		_, err = tx.Exec(
			`UPDATE games SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
			db.GameFull, gameID, db.GameOpen)
		if err != nil {
			return fmt.Errorf("error marking game %s full: %w", gameID, err)
		}
	}
	return tx.Commit()
}

// RemovePlayer takes a player out of the approved set and clears any of
// their pending join requests, reverting full -> open when the drop brings
// the game back under capacity. All of it commits or none of it does.
func (r *GameRepository) RemovePlayer(gameID string, userID int64) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return fmt.Errorf("error starting leave transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`DELETE FROM game_players WHERE game_id = $1 AND user_id = $2`, gameID, userID)
	if err != nil {
		return fmt.Errorf("error removing player from game %s: %w", gameID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows for leave: %w", err)
	}
	if affected == 0 {
		return ErrNotInGame
	}

	_, err = tx.Exec(`DELETE FROM game_join_requests WHERE game_id = $1 AND user_id = $2`, gameID, userID)
	if err != nil {
		return fmt.Errorf("error clearing join requests for game %s: %w", gameID, err)
	}

	_, err = tx.Exec(
		`UPDATE games SET status = $1, updated_at = NOW()
		 WHERE id = $2 AND status = $3
		   AND (SELECT COUNT(*) FROM game_players WHERE game_id = $2) < max_players`,
		db.GameOpen, gameID, db.GameFull)
	if err != nil {
		return fmt.Errorf("error reverting game %s to open: %w", gameID, err)
	}
	return tx.Commit()
}

func (r *GameRepository) UpdateStatus(gameID, status string) error {
	_, err := r.DB.Exec(`UPDATE games SET status = $1, updated_at = NOW() WHERE id = $2`, status, gameID)
	if err != nil {
		return fmt.Errorf("error updating game %s status: %w", gameID, err)
	}
	return nil
}

func (r *GameRepository) SetBookingStatus(gameID, bookingStatus string) error {
	_, err := r.DB.Exec(
		`UPDATE games SET booking_status = $1, updated_at = NOW() WHERE id = $2`, bookingStatus, gameID)
	if err != nil {
		return fmt.Errorf("error updating game %s booking status: %w", gameID, err)
	}
	return nil
}

// Reopen resets a game whose payment session expired: back to open and
// not booked so the host can try again.
func (r *GameRepository) Reopen(gameID string) error {
	_, err := r.DB.Exec(
		`UPDATE games SET status = $1, booking_status = $2, updated_at = NOW() WHERE id = $3`,
		db.GameOpen, db.GameNotBooked, gameID)
	if err != nil {
		return fmt.Errorf("error reopening game %s: %w", gameID, err)
	}
	return nil
}

// CompletePastGames marks games whose slot has ended as completed.
func (r *GameRepository) CompletePastGames() (int64, error) {
	result, err := r.DB.Exec(
		`UPDATE games SET status = $1, updated_at = NOW()
		 WHERE status NOT IN ($2, $3) AND end_time < NOW()`,
		db.GameCompleted, db.GameCancelled, db.GameCompleted)
	if err != nil {
		return 0, fmt.Errorf("error completing past games: %w", err)
	}
	return result.RowsAffected()
}
