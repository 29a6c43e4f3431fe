package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"turfbooking/internal/db"
)

type SlotRepository struct {
	DB *sql.DB
}

func NewSlotRepository(database *sql.DB) *SlotRepository {
	return &SlotRepository{DB: database}
}

// ErrSlotNotFound marks a slot reference that does not resolve inside its sheet.
var ErrSlotNotFound = errors.New("slot not found")

func (r *SlotRepository) GetSlot(sheetID, slotID int64) (*db.Slot, error) {
	var s db.Slot
	query := `
		SELECT id, sheet_id, start_time, end_time, status, booked_for_sport, prices, updated_at
		FROM slots WHERE id = $1 AND sheet_id = $2`
	err := r.DB.QueryRow(query, slotID, sheetID).Scan(
		&s.ID, &s.SheetID, &s.StartTime, &s.EndTime, &s.Status, &s.BookedForSport, &s.Prices, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("error querying slot %d in sheet %d: %w", slotID, sheetID, err)
	}
	return &s, nil
}

func (r *SlotRepository) GetSheet(sheetID int64) (*db.SlotSheet, error) {
	var sh db.SlotSheet
	err := r.DB.QueryRow(`SELECT id, sub_venue_id, date FROM slot_sheets WHERE id = $1`, sheetID).
		Scan(&sh.ID, &sh.SubVenueID, &sh.Date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("error querying slot sheet %d: %w", sheetID, err)
	}
	return &sh, nil
}

// LockSlot performs the atomic compare-and-swap that reserves a slot. The
// status guard in the WHERE clause is the sole source of truth for
// double-booking prevention: losing a concurrent race shows up as zero
// affected rows, never as an error.
func (r *SlotRepository) LockSlot(sheetID, slotID int64, sport string) (bool, error) {
	query := `
		UPDATE slots
		SET status = $1, booked_for_sport = $2, updated_at = NOW()
		WHERE id = $3 AND sheet_id = $4 AND status = $5`
	result, err := r.DB.Exec(query, db.SlotBooked, sport, slotID, sheetID, db.SlotAvailable)
	if err != nil {
		return false, fmt.Errorf("error locking slot %d in sheet %d: %w", slotID, sheetID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading affected rows for slot lock: %w", err)
	}
	return affected == 1, nil
}

// ReleaseSlot reverts a slot to available. The update is unconditional:
// callers only release slots they own, either as compensation after a
// failed flow or on webhook-driven expiry.
func (r *SlotRepository) ReleaseSlot(sheetID, slotID int64) error {
	query := `
		UPDATE slots
		SET status = $1, booked_for_sport = '', updated_at = NOW()
		WHERE id = $2 AND sheet_id = $3`
	_, err := r.DB.Exec(query, db.SlotAvailable, slotID, sheetID)
	if err != nil {
		return fmt.Errorf("error releasing slot %d in sheet %d: %w", slotID, sheetID, err)
	}
	return nil
}

// FindSlotByTime locates a slot by sub-venue and exact interval. This is
// the fragile fallback used by the webhook reconciler for sessions created
// before slot references were carried in the session metadata.
func (r *SlotRepository) FindSlotByTime(subVenueID int64, start, end time.Time) (int64, int64, error) {
	var sheetID, slotID int64
	query := `
		SELECT s.sheet_id, s.id
		FROM slots s
		JOIN slot_sheets sh ON sh.id = s.sheet_id
		WHERE sh.sub_venue_id = $1 AND s.start_time = $2 AND s.end_time = $3`
	err := r.DB.QueryRow(query, subVenueID, start, end).Scan(&sheetID, &slotID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, ErrSlotNotFound
		}
		return 0, 0, fmt.Errorf("error finding slot by time for sub-venue %d: %w", subVenueID, err)
	}
	return sheetID, slotID, nil
}
