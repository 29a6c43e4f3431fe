package service

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"turfbooking/internal/db"
	"turfbooking/internal/entities"
	apperrors "turfbooking/internal/errors"
	"turfbooking/internal/repository"
)

const (
	sessionExpiry   = 30 * time.Minute
	defaultCurrency = "inr"

	bookingTypeDirect = "direct"
	bookingTypeGame   = "game"
)

// Metadata keys carried on every checkout session. They must be enough to
// locate and reverse the exact slot without re-querying the booking record.
const (
	metaBookingID   = "booking_id"
	metaBookingType = "booking_type"
	metaSheetID     = "time_slot_id"
	metaSlotID      = "slot_id"
	metaUserID      = "user_id"
	metaGameID      = "game_id"
)

type SlotStore interface {
	GetSlot(sheetID, slotID int64) (*db.Slot, error)
	GetSheet(sheetID int64) (*db.SlotSheet, error)
	LockSlot(sheetID, slotID int64, sport string) (bool, error)
	ReleaseSlot(sheetID, slotID int64) error
	FindSlotByTime(subVenueID int64, start, end time.Time) (int64, int64, error)
}

type BookingStore interface {
	Create(b *db.Booking) error
	GetByID(id string) (*db.Booking, error)
	GetBySessionID(sessionID string) (*db.Booking, error)
	ListByUser(userID int64) ([]db.Booking, error)
	UpdateStatus(id, status string) error
	UpdateSession(id, sessionID string) error
	MarkPaid(id, paymentIntentID string) error
	CountActiveForSlotExcluding(sheetID, slotID int64, excludeBookingID string) (int, error)
}

type GameStore interface {
	Create(g *db.Game) error
	GetByID(id string) (*db.Game, error)
	CountApprovedPlayers(gameID string) (int, error)
	IsApprovedPlayer(gameID string, userID int64) (bool, error)
	CreateJoinRequest(gameID string, userID int64) error
	ApproveJoinRequest(gameID string, userID int64, maxPlayers int) error
	RemovePlayer(gameID string, userID int64) error
	UpdateStatus(gameID, status string) error
	SetBookingStatus(gameID, bookingStatus string) error
	Reopen(gameID string) error
}

type VenueStore interface {
	GetVenue(id int64) (*db.Venue, error)
	GetSubVenue(id int64) (*db.SubVenue, error)
}

// BookingConfig is the configuration surface of the booking flows.
// PaymentBypass skips the payment processor entirely and marks bookings
// paid with synthetic identifiers; it exists for non-production demos only.
type BookingConfig struct {
	FrontendURL   string
	Currency      string
	PaymentBypass bool
}

type BookingService struct {
	slots    SlotStore
	bookings BookingStore
	games    GameStore
	venues   VenueStore
	payments PaymentClient
	cfg      BookingConfig
}

func NewBookingService(slots SlotStore, bookings BookingStore, games GameStore, venues VenueStore, payments PaymentClient, cfg BookingConfig) *BookingService {
	if cfg.Currency == "" {
		cfg.Currency = defaultCurrency
	}
	return &BookingService{
		slots:    slots,
		bookings: bookings,
		games:    games,
		venues:   venues,
		payments: payments,
		cfg:      cfg,
	}
}

// CreateBooking runs the reservation protocol for a direct booking.
func (s *BookingService) CreateBooking(user *db.User, req entities.BookingRequest) (*entities.CheckoutResponse, error) {
	if req.SubVenueID <= 0 || req.SheetID <= 0 || req.SlotID <= 0 || req.Sport == "" {
		return nil, apperrors.Validation("sub_venue_id, time_slot_id, slot_id and sport are required")
	}
	return s.reserve(user, req.SubVenueID, req.SheetID, req.SlotID, req.Sport, nil)
}

// BookGame runs the reservation protocol on behalf of a game once it has
// gathered enough players. Only the host may trigger it.
func (s *BookingService) BookGame(user *db.User, gameID string) (*entities.CheckoutResponse, error) {
	g, err := s.games.GetByID(gameID)
	if err != nil {
		if errors.Is(err, repository.ErrGameNotFound) {
			return nil, apperrors.NotFound("Game not found")
		}
		log.Printf("Error loading game %s: %v", gameID, err)
		return nil, apperrors.Dependency("Could not load game")
	}
	if g.HostID != user.ID {
		return nil, apperrors.Authorization("Only the host can book this game")
	}
	if g.BookingStatus == db.GameBooked {
		return nil, apperrors.Validation("Game is already booked")
	}
	switch g.Status {
	case db.GameCancelled:
		return nil, apperrors.Validation("Game has been cancelled")
	case db.GameCompleted:
		return nil, apperrors.Validation("Game is already completed")
	}

	players, err := s.games.CountApprovedPlayers(g.ID)
	if err != nil {
		log.Printf("Error counting players for game %s: %v", g.ID, err)
		return nil, apperrors.Dependency("Could not load game players")
	}
	if players < g.MinPlayers {
		return nil, apperrors.Validation(fmt.Sprintf("Need at least %d players to book.", g.MinPlayers))
	}

	resp, err := s.reserve(user, g.SubVenueID, g.SheetID, g.SlotID, g.Sport, g)
	if err != nil {
		return nil, err
	}
	if err := s.games.UpdateStatus(g.ID, db.GameBookingPending); err != nil {
		log.Printf("ALERT: booking %s created but game %s status update failed: %v", resp.BookingID, g.ID, err)
	}
	return resp, nil
}

// reserve is the shared reservation protocol: validate, atomically lock
// the slot, open a payment session, persist the booking, and compensate by
// unlocking when anything past the lock fails.
func (s *BookingService) reserve(user *db.User, subVenueID, sheetID, slotID int64, sport string, game *db.Game) (*entities.CheckoutResponse, error) {
	slot, err := s.slots.GetSlot(sheetID, slotID)
	if err != nil {
		if errors.Is(err, repository.ErrSlotNotFound) {
			return nil, apperrors.NotFound("Slot not found")
		}
		log.Printf("Error loading slot %d/%d: %v", sheetID, slotID, err)
		return nil, apperrors.Dependency("Could not load slot")
	}
	sheet, err := s.slots.GetSheet(sheetID)
	if err != nil {
		if errors.Is(err, repository.ErrSlotNotFound) {
			return nil, apperrors.NotFound("Slot not found")
		}
		log.Printf("Error loading slot sheet %d: %v", sheetID, err)
		return nil, apperrors.Dependency("Could not load slot")
	}
	if sheet.SubVenueID != subVenueID {
		return nil, apperrors.Validation("Slot does not belong to the given sub-venue")
	}

	// Fast-path rejection only. The conditional update below is the sole
	// source of truth for double-booking prevention.
	if slot.Status != db.SlotAvailable {
		return nil, apperrors.Conflict("Slot is no longer available")
	}
	if !slot.StartTime.After(time.Now().UTC()) {
		return nil, apperrors.Validation("Slot start time has passed")
	}

	prices, err := entities.ParseSportPrices(slot.Prices)
	if err != nil {
		log.Printf("Error parsing prices for slot %d/%d: %v", sheetID, slotID, err)
		return nil, apperrors.Dependency("Could not read slot prices")
	}
	price, ok := prices.PriceFor(sport)
	if !ok {
		return nil, apperrors.Validation(fmt.Sprintf("No price configured for sport %s", sport))
	}

	subVenue, err := s.venues.GetSubVenue(subVenueID)
	if err != nil {
		if errors.Is(err, repository.ErrSubVenueNotFound) {
			return nil, apperrors.NotFound("Sub-venue not found")
		}
		log.Printf("Error loading sub-venue %d: %v", subVenueID, err)
		return nil, apperrors.Dependency("Could not load sub-venue")
	}
	venue, err := s.venues.GetVenue(subVenue.VenueID)
	if err != nil {
		if errors.Is(err, repository.ErrVenueNotFound) {
			return nil, apperrors.NotFound("Venue not found")
		}
		log.Printf("Error loading venue %d: %v", subVenue.VenueID, err)
		return nil, apperrors.Dependency("Could not load venue")
	}

	won, err := s.slots.LockSlot(sheetID, slotID, sport)
	if err != nil {
		log.Printf("Error locking slot %d/%d: %v", sheetID, slotID, err)
		return nil, apperrors.Dependency("Could not reserve slot")
	}
	if !won {
		return nil, apperrors.Conflict("Slot is no longer available")
	}

	now := time.Now().UTC()
	booking := &db.Booking{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		VenueID:    venue.ID,
		SubVenueID: subVenue.ID,
		Sport:      sport,
		VenueLat:   venue.Latitude,
		VenueLng:   venue.Longitude,
		StartTime:  slot.StartTime,
		EndTime:    slot.EndTime,
		SheetID:    sheetID,
		SlotID:     slotID,
		Amount:     price * 100,
		Currency:   s.cfg.Currency,
		Status:     db.BookingPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if game != nil {
		booking.GameID = sql.NullString{String: game.ID, Valid: true}
	}

	if s.cfg.PaymentBypass {
		booking.StripeSessionID = "bypass_" + booking.ID
		booking.StripePaymentIntentID = sql.NullString{String: "bypass_pi_" + booking.ID, Valid: true}
		booking.Status = db.BookingPaid
		if err := s.bookings.Create(booking); err != nil {
			s.releaseAfterFailure(sheetID, slotID, err)
			return nil, apperrors.Dependency("Could not save booking")
		}
		return &entities.CheckoutResponse{
			BookingID:   booking.ID,
			SessionID:   booking.StripeSessionID,
			RedirectURL: s.cfg.FrontendURL + "/payment/success?session_id=" + booking.StripeSessionID,
		}, nil
	}

	sessionID, redirectURL, err := s.payments.CreateCheckoutSession(CheckoutParams{
		Amount:        booking.Amount,
		Currency:      booking.Currency,
		Description:   fmt.Sprintf("%s at %s, %s (%s)", sport, venue.Name, subVenue.Name, slot.StartTime.Format("02 Jan 2006 15:04")),
		CustomerEmail: user.Email,
		Metadata:      s.sessionMetadata(booking, game),
		SuccessURL:    s.cfg.FrontendURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.cfg.FrontendURL + "/payment/cancelled?session_id={CHECKOUT_SESSION_ID}",
		ExpiresAt:     now.Add(sessionExpiry),
	})
	if err != nil {
		s.releaseAfterFailure(sheetID, slotID, err)
		return nil, apperrors.Dependency("Could not create payment session")
	}

	booking.StripeSessionID = sessionID
	if err := s.bookings.Create(booking); err != nil {
		s.releaseAfterFailure(sheetID, slotID, err)
		return nil, apperrors.Dependency("Could not save booking")
	}

	return &entities.CheckoutResponse{
		BookingID:   booking.ID,
		SessionID:   sessionID,
		RedirectURL: redirectURL,
	}, nil
}

func (s *BookingService) sessionMetadata(b *db.Booking, game *db.Game) map[string]string {
	meta := map[string]string{
		metaBookingID:   b.ID,
		metaBookingType: bookingTypeDirect,
		metaSheetID:     strconv.FormatInt(b.SheetID, 10),
		metaSlotID:      strconv.FormatInt(b.SlotID, 10),
		metaUserID:      strconv.FormatInt(b.UserID, 10),
	}
	if game != nil {
		meta[metaBookingType] = bookingTypeGame
		meta[metaGameID] = game.ID
	}
	return meta
}

// releaseAfterFailure is the compensating action of the reservation
// protocol. The lock was acquired conditionally, but the reversal is
// unconditional: at this point the caller is the confirmed owner.
func (s *BookingService) releaseAfterFailure(sheetID, slotID int64, cause error) {
	log.Printf("Releasing slot %d/%d after aborted booking: %v", sheetID, slotID, cause)
	if err := s.slots.ReleaseSlot(sheetID, slotID); err != nil {
		log.Printf("ALERT: failed to release slot %d/%d, it may stay locked: %v", sheetID, slotID, err)
	}
}

// RetryPayment re-attempts payment for a previously failed or pending
// booking. A failed booking must re-win the slot lock. A pending booking
// may find its slot already booked; ownership is then verified explicitly
// against the booking store instead of being presumed.
func (s *BookingService) RetryPayment(user *db.User, bookingID string) (*entities.CheckoutResponse, error) {
	if bookingID == "" {
		return nil, apperrors.Validation("booking_id is required")
	}
	if s.cfg.PaymentBypass {
		return nil, apperrors.Validation("Payment retry is not available in bypass mode")
	}
	b, err := s.bookings.GetByID(bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return nil, apperrors.NotFound("Booking not found")
		}
		log.Printf("Error loading booking %s: %v", bookingID, err)
		return nil, apperrors.Dependency("Could not load booking")
	}
	if b.UserID != user.ID {
		return nil, apperrors.Authorization("You do not own this booking")
	}
	if b.Status == db.BookingPaid {
		return nil, apperrors.Validation("Booking is already paid")
	}
	if !b.StartTime.After(time.Now().UTC()) {
		return nil, apperrors.Validation("Slot start time has passed")
	}

	// lockedHere tracks whether this call acquired the lock. Compensation
	// below must never release a lock some other flow owns.
	lockedHere := false
	won, err := s.slots.LockSlot(b.SheetID, b.SlotID, b.Sport)
	if err != nil {
		log.Printf("Error re-locking slot %d/%d for retry: %v", b.SheetID, b.SlotID, err)
		return nil, apperrors.Dependency("Could not reserve slot")
	}
	if won {
		lockedHere = true
	} else {
		if b.Status == db.BookingFailed {
			return nil, apperrors.Conflict("Slot is no longer available")
		}
		slot, err := s.slots.GetSlot(b.SheetID, b.SlotID)
		if err != nil {
			log.Printf("Error re-reading slot %d/%d for retry: %v", b.SheetID, b.SlotID, err)
			return nil, apperrors.Dependency("Could not load slot")
		}
		if slot.Status != db.SlotBooked {
			return nil, apperrors.Conflict("Slot is no longer available")
		}
		others, err := s.bookings.CountActiveForSlotExcluding(b.SheetID, b.SlotID, b.ID)
		if err != nil {
			log.Printf("Error verifying slot ownership for booking %s: %v", b.ID, err)
			return nil, apperrors.Dependency("Could not verify slot ownership")
		}
		if others > 0 {
			return nil, apperrors.Conflict("Slot is no longer available")
		}
	}

	var game *db.Game
	if b.GameID.Valid {
		game = &db.Game{ID: b.GameID.String}
	}
	now := time.Now().UTC()
	sessionID, redirectURL, err := s.payments.CreateCheckoutSession(CheckoutParams{
		Amount:        b.Amount,
		Currency:      b.Currency,
		Description:   fmt.Sprintf("%s booking %s (retry)", b.Sport, b.ID),
		CustomerEmail: user.Email,
		Metadata:      s.sessionMetadata(b, game),
		SuccessURL:    s.cfg.FrontendURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.cfg.FrontendURL + "/payment/cancelled?session_id={CHECKOUT_SESSION_ID}",
		ExpiresAt:     now.Add(sessionExpiry),
	})
	if err != nil {
		if lockedHere {
			s.releaseAfterFailure(b.SheetID, b.SlotID, err)
		}
		return nil, apperrors.Dependency("Could not create payment session")
	}

	if err := s.bookings.UpdateSession(b.ID, sessionID); err != nil {
		if lockedHere {
			s.releaseAfterFailure(b.SheetID, b.SlotID, err)
		}
		log.Printf("Error updating booking %s with new session: %v", b.ID, err)
		return nil, apperrors.Dependency("Could not update booking")
	}

	if b.GameID.Valid {
		if err := s.games.UpdateStatus(b.GameID.String, db.GameBookingPending); err != nil {
			log.Printf("ALERT: retry for booking %s succeeded but game %s status update failed: %v", b.ID, b.GameID.String, err)
		}
	}

	return &entities.CheckoutResponse{
		BookingID:   b.ID,
		SessionID:   sessionID,
		RedirectURL: redirectURL,
	}, nil
}

// FinalizePaidSession applies a checkout.session.completed event. Paid is
// terminal; replays are acknowledged without mutation.
func (s *BookingService) FinalizePaidSession(sessionID, paymentIntentID string, metadata map[string]string) error {
	b, err := s.bookings.GetBySessionID(sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			log.Printf("No booking for completed session %s", sessionID)
			return nil
		}
		return err
	}
	if b.Status == db.BookingPaid {
		return nil
	}
	if err := s.bookings.MarkPaid(b.ID, paymentIntentID); err != nil {
		return err
	}
	if metadata[metaBookingType] == bookingTypeGame && b.GameID.Valid {
		if err := s.games.SetBookingStatus(b.GameID.String, db.GameBooked); err != nil {
			return err
		}
	}
	return nil
}

// ExpireSession applies a checkout.session.expired event: the booking
// fails, a linked game reopens, and the slot is released. The slot is
// located through the session metadata when present; sessions created
// before metadata carried slot references fall back to a date/time lookup.
func (s *BookingService) ExpireSession(sessionID string, metadata map[string]string) error {
	b, err := s.bookings.GetBySessionID(sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			log.Printf("No booking for expired session %s", sessionID)
			return nil
		}
		return err
	}
	if b.Status == db.BookingPaid {
		return nil
	}
	if err := s.bookings.UpdateStatus(b.ID, db.BookingFailed); err != nil {
		return err
	}
	if b.GameID.Valid {
		if err := s.games.Reopen(b.GameID.String); err != nil {
			return err
		}
	}

	sheetID, slotID, ok := slotRefFromMetadata(metadata)
	if !ok {
		sheetID, slotID, err = s.slots.FindSlotByTime(b.SubVenueID, b.StartTime, b.EndTime)
		if err != nil {
			log.Printf("ALERT: could not locate slot for expired session %s (booking %s): %v", sessionID, b.ID, err)
			return nil
		}
	}
	return s.slots.ReleaseSlot(sheetID, slotID)
}

func slotRefFromMetadata(metadata map[string]string) (int64, int64, bool) {
	sheetID, err1 := strconv.ParseInt(metadata[metaSheetID], 10, 64)
	slotID, err2 := strconv.ParseInt(metadata[metaSlotID], 10, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return sheetID, slotID, true
}

// BookingForSession looks a booking up by its payment session.
func (s *BookingService) BookingForSession(sessionID string) (*db.Booking, error) {
	return s.bookings.GetBySessionID(sessionID)
}

// MyBookings lists the requester's bookings, newest slot first.
func (s *BookingService) MyBookings(user *db.User) ([]entities.BookingResponse, error) {
	bookings, err := s.bookings.ListByUser(user.ID)
	if err != nil {
		log.Printf("Error listing bookings for user %d: %v", user.ID, err)
		return nil, apperrors.Dependency("Could not list bookings")
	}
	out := make([]entities.BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingResponse(b))
	}
	return out, nil
}

// VerifyPayment reports the current payment state of the requester's
// booking for a given session.
func (s *BookingService) VerifyPayment(user *db.User, sessionID string) (*entities.PaymentStatusResponse, error) {
	if sessionID == "" {
		return nil, apperrors.Validation("session_id is required")
	}
	b, err := s.bookings.GetBySessionID(sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return nil, apperrors.NotFound("Booking not found")
		}
		log.Printf("Error loading booking for session %s: %v", sessionID, err)
		return nil, apperrors.Dependency("Could not load booking")
	}
	if b.UserID != user.ID {
		return nil, apperrors.Authorization("You do not own this booking")
	}
	return &entities.PaymentStatusResponse{BookingID: b.ID, Status: b.Status}, nil
}

// CalendarLink builds a Google Calendar render URL for a paid booking.
func (s *BookingService) CalendarLink(user *db.User, bookingID string) (string, error) {
	b, err := s.bookings.GetByID(bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return "", apperrors.NotFound("Booking not found")
		}
		log.Printf("Error loading booking %s: %v", bookingID, err)
		return "", apperrors.Dependency("Could not load booking")
	}
	if b.UserID != user.ID {
		return "", apperrors.Authorization("You do not own this booking")
	}

	const stamp = "20060102T150405Z"
	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", fmt.Sprintf("%s booking", b.Sport))
	q.Set("dates", b.StartTime.UTC().Format(stamp)+"/"+b.EndTime.UTC().Format(stamp))
	q.Set("details", fmt.Sprintf("Booking %s (%s)", b.ID, b.Status))
	q.Set("location", fmt.Sprintf("%f,%f", b.VenueLat, b.VenueLng))
	return "https://calendar.google.com/calendar/render?" + q.Encode(), nil
}

func toBookingResponse(b db.Booking) entities.BookingResponse {
	resp := entities.BookingResponse{
		ID:         b.ID,
		VenueID:    b.VenueID,
		SubVenueID: b.SubVenueID,
		Sport:      b.Sport,
		StartTime:  b.StartTime,
		EndTime:    b.EndTime,
		Amount:     b.Amount,
		Currency:   b.Currency,
		Status:     b.Status,
		VenueLat:   b.VenueLat,
		VenueLng:   b.VenueLng,
		CreatedAt:  b.CreatedAt,
	}
	if b.GameID.Valid {
		resp.GameID = b.GameID.String
	}
	return resp
}
