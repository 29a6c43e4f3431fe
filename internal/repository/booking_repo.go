package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"turfbooking/internal/db"
)

var ErrBookingNotFound = errors.New("booking not found")

type BookingRepository struct {
	DB *sql.DB
}

func NewBookingRepository(database *sql.DB) *BookingRepository {
	return &BookingRepository{DB: database}
}

const bookingColumns = `
	id, user_id, venue_id, sub_venue_id, sport, venue_lat, venue_lng,
	start_time, end_time, sheet_id, slot_id, amount, currency,
	stripe_session_id, stripe_payment_intent_id, status, game_id,
	created_at, updated_at`

func scanBooking(row *sql.Row) (*db.Booking, error) {
	var b db.Booking
	err := row.Scan(
		&b.ID, &b.UserID, &b.VenueID, &b.SubVenueID, &b.Sport, &b.VenueLat, &b.VenueLng,
		&b.StartTime, &b.EndTime, &b.SheetID, &b.SlotID, &b.Amount, &b.Currency,
		&b.StripeSessionID, &b.StripePaymentIntentID, &b.Status, &b.GameID,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("error scanning booking: %w", err)
	}
	return &b, nil
}

func (r *BookingRepository) Create(b *db.Booking) error {
	query := `
		INSERT INTO bookings
		(id, user_id, venue_id, sub_venue_id, sport, venue_lat, venue_lng,
		 start_time, end_time, sheet_id, slot_id, amount, currency,
		 stripe_session_id, stripe_payment_intent_id, status, game_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`
	_, err := r.DB.Exec(query,
		b.ID, b.UserID, b.VenueID, b.SubVenueID, b.Sport, b.VenueLat, b.VenueLng,
		b.StartTime, b.EndTime, b.SheetID, b.SlotID, b.Amount, b.Currency,
		b.StripeSessionID, b.StripePaymentIntentID, b.Status, b.GameID, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("error creating booking %s: %w", b.ID, err)
	}
	return nil
}

func (r *BookingRepository) GetByID(id string) (*db.Booking, error) {
	query := `SELECT` + bookingColumns + ` FROM bookings WHERE id = $1`
	return scanBooking(r.DB.QueryRow(query, id))
}

func (r *BookingRepository) GetBySessionID(sessionID string) (*db.Booking, error) {
	query := `SELECT` + bookingColumns + ` FROM bookings WHERE stripe_session_id = $1`
	return scanBooking(r.DB.QueryRow(query, sessionID))
}

func (r *BookingRepository) ListByUser(userID int64) ([]db.Booking, error) {
	query := `SELECT` + bookingColumns + ` FROM bookings WHERE user_id = $1 ORDER BY start_time DESC`
	rows, err := r.DB.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing bookings for user %d: %w", userID, err)
	}
	defer rows.Close()

	var bookings []db.Booking
	for rows.Next() {
		var b db.Booking
		if err := rows.Scan(
			&b.ID, &b.UserID, &b.VenueID, &b.SubVenueID, &b.Sport, &b.VenueLat, &b.VenueLng,
			&b.StartTime, &b.EndTime, &b.SheetID, &b.SlotID, &b.Amount, &b.Currency,
			&b.StripeSessionID, &b.StripePaymentIntentID, &b.Status, &b.GameID,
			&b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning booking row: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating booking rows: %w", err)
	}
	return bookings, nil
}

func (r *BookingRepository) UpdateStatus(id, status string) error {
	_, err := r.DB.Exec(`UPDATE bookings SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("error updating booking %s status: %w", id, err)
	}
	return nil
}

// UpdateSession points a booking at a fresh payment session and loops its
// status back to pending. Used by the retry flow; the amount snapshot is
// deliberately untouched.
func (r *BookingRepository) UpdateSession(id, sessionID string) error {
	query := `UPDATE bookings SET stripe_session_id = $1, status = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.DB.Exec(query, sessionID, db.BookingPending, id)
	if err != nil {
		return fmt.Errorf("error updating booking %s session: %w", id, err)
	}
	return nil
}

func (r *BookingRepository) MarkPaid(id, paymentIntentID string) error {
	query := `
		UPDATE bookings
		SET status = $1, stripe_payment_intent_id = $2, updated_at = NOW()
		WHERE id = $3`
	_, err := r.DB.Exec(query, db.BookingPaid, paymentIntentID, id)
	if err != nil {
		return fmt.Errorf("error marking booking %s paid: %w", id, err)
	}
	return nil
}

// CountActiveForSlotExcluding counts non-failed bookings other than the
// given one that reference a slot. The retry flow uses it to verify that a
// booked-but-unlockable slot really belongs to the retrying booking and
// not to a different purchase attempt.
func (r *BookingRepository) CountActiveForSlotExcluding(sheetID, slotID int64, excludeBookingID string) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM bookings
		WHERE sheet_id = $1 AND slot_id = $2 AND id <> $3 AND status <> $4`
	err := r.DB.QueryRow(query, sheetID, slotID, excludeBookingID, db.BookingFailed).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting active bookings for slot %d: %w", slotID, err)
	}
	return count, nil
}

// DeleteFailedOlderThan purges failed bookings abandoned before the cutoff.
func (r *BookingRepository) DeleteFailedOlderThan(before time.Time) (int64, error) {
	result, err := r.DB.Exec(
		`DELETE FROM bookings WHERE status = $1 AND updated_at < $2`, db.BookingFailed, before)
	if err != nil {
		return 0, fmt.Errorf("error deleting failed bookings: %w", err)
	}
	return result.RowsAffected()
}
