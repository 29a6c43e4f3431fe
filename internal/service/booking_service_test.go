package service

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turfbooking/internal/db"
	"turfbooking/internal/entities"
	apperrors "turfbooking/internal/errors"
)

type bookingFixture struct {
	svc      *BookingService
	slots    *fakeSlotStore
	bookings *fakeBookingStore
	games    *fakeGameStore
	venues   *fakeVenueStore
	payments *fakePayments
	user     *db.User
	slot     *db.Slot
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()

	slots := newFakeSlotStore()
	bookings := newFakeBookingStore()
	games := newFakeGameStore()
	venues := newFakeVenueStore()
	payments := &fakePayments{}

	venues.venues[1] = &db.Venue{ID: 1, Name: "City Arena", City: "Pune", Latitude: 18.52, Longitude: 73.85}
	venues.subVenues[10] = &db.SubVenue{ID: 10, VenueID: 1, Name: "Turf A", Sports: []string{"Cricket", "Football"}}

	start := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Hour)
	slot := &db.Slot{
		ID:        5,
		SheetID:   100,
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		Status:    db.SlotAvailable,
		Prices:    json.RawMessage(`{"Cricket": 1000, "Football": 800}`),
	}
	slots.addSlot(&db.SlotSheet{ID: 100, SubVenueID: 10, Date: start}, slot)

	svc := NewBookingService(slots, bookings, games, venues, payments, BookingConfig{
		FrontendURL: "https://turf.example.com",
	})

	return &bookingFixture{
		svc:      svc,
		slots:    slots,
		bookings: bookings,
		games:    games,
		venues:   venues,
		payments: payments,
		user:     &db.User{ID: 7, Name: "Asha", Email: "asha@example.com", Phone: "+911234567890"},
		slot:     slot,
	}
}

func (f *bookingFixture) request() entities.BookingRequest {
	return entities.BookingRequest{SubVenueID: 10, SheetID: 100, SlotID: 5, Sport: "Cricket"}
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	httpErr, ok := err.(*apperrors.HTTPError)
	require.True(t, ok, "expected *HTTPError, got %T: %v", err, err)
	return httpErr.Code
}

func TestCreateBookingLocksSlotAndSnapshotsPrice(t *testing.T) {
	f := newBookingFixture(t)

	resp, err := f.svc.CreateBooking(f.user, f.request())
	require.NoError(t, err)
	require.NotEmpty(t, resp.BookingID)
	assert.Equal(t, "cs_test_1", resp.SessionID)
	assert.NotEmpty(t, resp.RedirectURL)

	b, err := f.bookings.GetByID(resp.BookingID)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), b.Amount, "amount is the minor-unit price snapshot")
	assert.Equal(t, db.BookingPending, b.Status)
	assert.Equal(t, "inr", b.Currency)
	assert.Equal(t, 18.52, b.VenueLat)
	assert.Equal(t, 73.85, b.VenueLng)

	slot, err := f.slots.GetSlot(100, 5)
	require.NoError(t, err)
	assert.Equal(t, db.SlotBooked, slot.Status)
	assert.Equal(t, "Cricket", slot.BookedForSport)

	require.Len(t, f.payments.calls, 1)
	call := f.payments.calls[0]
	assert.Equal(t, int64(100000), call.Amount)
	assert.Equal(t, resp.BookingID, call.Metadata["booking_id"])
	assert.Equal(t, "direct", call.Metadata["booking_type"])
	assert.Equal(t, "100", call.Metadata["time_slot_id"])
	assert.Equal(t, "5", call.Metadata["slot_id"])
	assert.WithinDuration(t, time.Now().UTC().Add(30*time.Minute), call.ExpiresAt, time.Minute)
}

func TestCreateBookingSecondCallerLosesRace(t *testing.T) {
	f := newBookingFixture(t)

	_, err := f.svc.CreateBooking(f.user, f.request())
	require.NoError(t, err)

	other := &db.User{ID: 8, Email: "ravi@example.com"}
	_, err = f.svc.CreateBooking(other, f.request())
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httpCode(t, err))
	assert.EqualError(t, err, "Slot is no longer available")
}

func TestCreateBookingLockLossAfterFastPath(t *testing.T) {
	f := newBookingFixture(t)
	// Fast-path read sees the slot available, but the conditional update
	// loses to a concurrent writer.
	f.slots.forceLockLoss = true

	_, err := f.svc.CreateBooking(f.user, f.request())
	require.Error(t, err)
	assert.EqualError(t, err, "Slot is no longer available")
	assert.Empty(t, f.payments.calls, "no payment session without the lock")
}

func TestCreateBookingPaymentFailureReleasesSlot(t *testing.T) {
	f := newBookingFixture(t)
	f.payments.err = errPaymentDown

	_, err := f.svc.CreateBooking(f.user, f.request())
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, httpCode(t, err))

	slot, err := f.slots.GetSlot(100, 5)
	require.NoError(t, err)
	assert.Equal(t, db.SlotAvailable, slot.Status)
	assert.Empty(t, slot.BookedForSport)
	assert.Empty(t, f.bookings.bookings, "no booking persisted after compensation")
}

func TestCreateBookingPersistFailureReleasesSlot(t *testing.T) {
	f := newBookingFixture(t)
	f.bookings.createErr = errPaymentDown

	_, err := f.svc.CreateBooking(f.user, f.request())
	require.Error(t, err)

	slot, getErr := f.slots.GetSlot(100, 5)
	require.NoError(t, getErr)
	assert.Equal(t, db.SlotAvailable, slot.Status)
}

func TestCreateBookingRejectsPastSlot(t *testing.T) {
	f := newBookingFixture(t)
	f.slot.StartTime = time.Now().UTC().Add(-time.Hour)
	f.slot.EndTime = f.slot.StartTime.Add(time.Hour)

	_, err := f.svc.CreateBooking(f.user, f.request())
	require.Error(t, err)
	assert.EqualError(t, err, "Slot start time has passed")
}

func TestCreateBookingRejectsUnpricedSport(t *testing.T) {
	f := newBookingFixture(t)
	req := f.request()
	req.Sport = "Badminton"

	_, err := f.svc.CreateBooking(f.user, req)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httpCode(t, err))
}

func TestCreateBookingListPriceShape(t *testing.T) {
	f := newBookingFixture(t)
	f.slot.Prices = json.RawMessage(`[{"sport":"Cricket","price":1500}]`)

	resp, err := f.svc.CreateBooking(f.user, f.request())
	require.NoError(t, err)

	b, err := f.bookings.GetByID(resp.BookingID)
	require.NoError(t, err)
	assert.Equal(t, int64(150000), b.Amount)
}

func TestBypassModeMarksPaidWithSyntheticIDs(t *testing.T) {
	f := newBookingFixture(t)
	f.svc.cfg.PaymentBypass = true

	resp, err := f.svc.CreateBooking(f.user, f.request())
	require.NoError(t, err)

	b, err := f.bookings.GetByID(resp.BookingID)
	require.NoError(t, err)
	assert.Equal(t, db.BookingPaid, b.Status)
	assert.Contains(t, b.StripeSessionID, "bypass_")
	assert.True(t, b.StripePaymentIntentID.Valid)
	assert.Empty(t, f.payments.calls, "processor is never called in bypass mode")
}

func newGame(f *bookingFixture, min, max int, playerIDs ...int64) *db.Game {
	g := &db.Game{
		ID:            "game-1",
		HostID:        f.user.ID,
		Sport:         "Cricket",
		VenueID:       1,
		SubVenueID:    10,
		SheetID:       100,
		SlotID:        5,
		MinPlayers:    min,
		MaxPlayers:    max,
		Status:        db.GameOpen,
		BookingStatus: db.GameNotBooked,
		StartTime:     f.slot.StartTime,
		EndTime:       f.slot.EndTime,
	}
	f.games.addGame(g, playerIDs...)
	return g
}

func TestBookGameRejectsBelowMinimum(t *testing.T) {
	f := newBookingFixture(t)
	newGame(f, 5, 10, 2, 3, 4) // host + 3 = 4 approved

	_, err := f.svc.BookGame(f.user, "game-1")
	require.Error(t, err)
	assert.EqualError(t, err, "Need at least 5 players to book.")
	assert.Equal(t, http.StatusBadRequest, httpCode(t, err))
}

func TestBookGameRejectsNonHost(t *testing.T) {
	f := newBookingFixture(t)
	newGame(f, 2, 10, 2)

	_, err := f.svc.BookGame(&db.User{ID: 2}, "game-1")
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httpCode(t, err))
}

func TestBookGameLocksSlotAndMarksBookingPending(t *testing.T) {
	f := newBookingFixture(t)
	g := newGame(f, 2, 10, 2, 3)

	resp, err := f.svc.BookGame(f.user, g.ID)
	require.NoError(t, err)

	b, err := f.bookings.GetByID(resp.BookingID)
	require.NoError(t, err)
	require.True(t, b.GameID.Valid)
	assert.Equal(t, g.ID, b.GameID.String)

	updated, err := f.games.GetByID(g.ID)
	require.NoError(t, err)
	assert.Equal(t, db.GameBookingPending, updated.Status)

	require.Len(t, f.payments.calls, 1)
	assert.Equal(t, "game", f.payments.calls[0].Metadata["booking_type"])
	assert.Equal(t, g.ID, f.payments.calls[0].Metadata["game_id"])
}

func seedBooking(f *bookingFixture, status string) *db.Booking {
	b := &db.Booking{
		ID:              "bk-1",
		UserID:          f.user.ID,
		VenueID:         1,
		SubVenueID:      10,
		Sport:           "Cricket",
		StartTime:       f.slot.StartTime,
		EndTime:         f.slot.EndTime,
		SheetID:         100,
		SlotID:          5,
		Amount:          100000,
		Currency:        "inr",
		StripeSessionID: "cs_old",
		Status:          status,
	}
	f.bookings.bookings[b.ID] = b
	return b
}

func TestRetryRejectsPaidBooking(t *testing.T) {
	f := newBookingFixture(t)
	seedBooking(f, db.BookingPaid)

	_, err := f.svc.RetryPayment(f.user, "bk-1")
	require.Error(t, err)
	assert.EqualError(t, err, "Booking is already paid")
}

func TestRetryRejectsForeignBooking(t *testing.T) {
	f := newBookingFixture(t)
	seedBooking(f, db.BookingFailed)

	_, err := f.svc.RetryPayment(&db.User{ID: 99}, "bk-1")
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httpCode(t, err))
}

func TestRetryFailedBookingRelocksSlot(t *testing.T) {
	f := newBookingFixture(t)
	seedBooking(f, db.BookingFailed)
	f.payments.sessionID = "cs_new"

	resp, err := f.svc.RetryPayment(f.user, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, "cs_new", resp.SessionID)

	slot, err := f.slots.GetSlot(100, 5)
	require.NoError(t, err)
	assert.Equal(t, db.SlotBooked, slot.Status)

	b, err := f.bookings.GetByID("bk-1")
	require.NoError(t, err)
	assert.Equal(t, db.BookingPending, b.Status)
	assert.Equal(t, "cs_new", b.StripeSessionID)
	assert.Equal(t, int64(100000), b.Amount, "retry reuses the original price snapshot")
}

func TestRetryFailedBookingLosesSlotToOther(t *testing.T) {
	f := newBookingFixture(t)
	seedBooking(f, db.BookingFailed)
	f.slot.Status = db.SlotBooked
	f.slot.BookedForSport = "Football"

	_, err := f.svc.RetryPayment(f.user, "bk-1")
	require.Error(t, err)
	assert.EqualError(t, err, "Slot is no longer available")
}

func TestRetryPendingAcceptsOwnLock(t *testing.T) {
	f := newBookingFixture(t)
	seedBooking(f, db.BookingPending)
	// The earlier attempt already holds the lock; no other booking
	// references the slot.
	f.slot.Status = db.SlotBooked
	f.slot.BookedForSport = "Cricket"
	f.payments.sessionID = "cs_new"

	resp, err := f.svc.RetryPayment(f.user, "bk-1")
	require.NoError(t, err)
	assert.Equal(t, "cs_new", resp.SessionID)
}

func TestRetryPendingRejectsForeignLock(t *testing.T) {
	f := newBookingFixture(t)
	seedBooking(f, db.BookingPending)
	f.slot.Status = db.SlotBooked
	// A different, still-active booking references the same slot.
	f.bookings.bookings["bk-2"] = &db.Booking{
		ID: "bk-2", UserID: 99, SheetID: 100, SlotID: 5, Status: db.BookingPending,
	}

	_, err := f.svc.RetryPayment(f.user, "bk-1")
	require.Error(t, err)
	assert.EqualError(t, err, "Slot is no longer available")
}

func TestRetryNeverReleasesLockItDidNotTake(t *testing.T) {
	f := newBookingFixture(t)
	seedBooking(f, db.BookingPending)
	f.slot.Status = db.SlotBooked
	f.slot.BookedForSport = "Cricket"
	f.payments.err = errPaymentDown

	_, err := f.svc.RetryPayment(f.user, "bk-1")
	require.Error(t, err)

	assert.Empty(t, f.slots.released, "retry must not release a lock another call owns")
	slot, getErr := f.slots.GetSlot(100, 5)
	require.NoError(t, getErr)
	assert.Equal(t, db.SlotBooked, slot.Status)
}

func TestRetryReleasesLockItTookOnPaymentFailure(t *testing.T) {
	f := newBookingFixture(t)
	seedBooking(f, db.BookingFailed)
	f.payments.err = errPaymentDown

	_, err := f.svc.RetryPayment(f.user, "bk-1")
	require.Error(t, err)

	slot, getErr := f.slots.GetSlot(100, 5)
	require.NoError(t, getErr)
	assert.Equal(t, db.SlotAvailable, slot.Status)
}

func TestFinalizePaidSessionMarksPaidAndGameBooked(t *testing.T) {
	f := newBookingFixture(t)
	g := newGame(f, 2, 10, 2)
	b := seedBooking(f, db.BookingPending)
	b.GameID = sql.NullString{String: g.ID, Valid: true}

	err := f.svc.FinalizePaidSession("cs_old", "pi_123", map[string]string{"booking_type": "game"})
	require.NoError(t, err)

	updated, err := f.bookings.GetByID("bk-1")
	require.NoError(t, err)
	assert.Equal(t, db.BookingPaid, updated.Status)
	assert.Equal(t, "pi_123", updated.StripePaymentIntentID.String)

	game, err := f.games.GetByID(g.ID)
	require.NoError(t, err)
	assert.Equal(t, db.GameBooked, game.BookingStatus)
}

func TestFinalizePaidSessionIsIdempotent(t *testing.T) {
	f := newBookingFixture(t)
	seedBooking(f, db.BookingPaid)

	require.NoError(t, f.svc.FinalizePaidSession("cs_old", "pi_123", nil))
	assert.Zero(t, f.bookings.markPaidCalls, "paid is terminal")
}

func TestFinalizePaidSessionUnknownSessionIsAcked(t *testing.T) {
	f := newBookingFixture(t)
	require.NoError(t, f.svc.FinalizePaidSession("cs_unknown", "", nil))
}

func TestExpireSessionReleasesSlotViaMetadata(t *testing.T) {
	f := newBookingFixture(t)
	g := newGame(f, 2, 10, 2)
	g.Status = db.GameBookingPending
	b := seedBooking(f, db.BookingPending)
	b.GameID = sql.NullString{String: g.ID, Valid: true}
	f.slot.Status = db.SlotBooked
	f.slot.BookedForSport = "Cricket"

	err := f.svc.ExpireSession("cs_old", map[string]string{"time_slot_id": "100", "slot_id": "5"})
	require.NoError(t, err)

	updated, err := f.bookings.GetByID("bk-1")
	require.NoError(t, err)
	assert.Equal(t, db.BookingFailed, updated.Status)

	game, err := f.games.GetByID(g.ID)
	require.NoError(t, err)
	assert.Equal(t, db.GameOpen, game.Status)
	assert.Equal(t, db.GameNotBooked, game.BookingStatus)

	slot, err := f.slots.GetSlot(100, 5)
	require.NoError(t, err)
	assert.Equal(t, db.SlotAvailable, slot.Status)
	assert.Empty(t, slot.BookedForSport)
}

func TestExpireSessionFallsBackToTimeLookup(t *testing.T) {
	f := newBookingFixture(t)
	seedBooking(f, db.BookingPending)
	f.slot.Status = db.SlotBooked

	err := f.svc.ExpireSession("cs_old", nil)
	require.NoError(t, err)

	slot, getErr := f.slots.GetSlot(100, 5)
	require.NoError(t, getErr)
	assert.Equal(t, db.SlotAvailable, slot.Status)
}

func TestExpireSessionPaidIsTerminal(t *testing.T) {
	f := newBookingFixture(t)
	seedBooking(f, db.BookingPaid)
	f.slot.Status = db.SlotBooked

	err := f.svc.ExpireSession("cs_old", map[string]string{"time_slot_id": "100", "slot_id": "5"})
	require.NoError(t, err)

	updated, getErr := f.bookings.GetByID("bk-1")
	require.NoError(t, getErr)
	assert.Equal(t, db.BookingPaid, updated.Status)
	slot, getErr := f.slots.GetSlot(100, 5)
	require.NoError(t, getErr)
	assert.Equal(t, db.SlotBooked, slot.Status, "paid bookings keep their slot")
}

func TestAmountSnapshotSurvivesPriceChange(t *testing.T) {
	f := newBookingFixture(t)
	resp, err := f.svc.CreateBooking(f.user, f.request())
	require.NoError(t, err)

	// Price table changes after the booking was created.
	f.slot.Prices = json.RawMessage(`{"Cricket": 9999}`)
	require.NoError(t, f.bookings.UpdateStatus(resp.BookingID, db.BookingFailed))
	f.slot.Status = db.SlotAvailable
	f.slot.BookedForSport = ""
	f.payments.calls = nil

	b, err := f.bookings.GetByID(resp.BookingID)
	require.NoError(t, err)
	_, err = f.svc.RetryPayment(f.user, b.ID)
	require.NoError(t, err)

	require.Len(t, f.payments.calls, 1)
	assert.Equal(t, int64(100000), f.payments.calls[0].Amount)
}

func TestVerifyPaymentReportsStatus(t *testing.T) {
	f := newBookingFixture(t)
	seedBooking(f, db.BookingPending)

	resp, err := f.svc.VerifyPayment(f.user, "cs_old")
	require.NoError(t, err)
	assert.Equal(t, "bk-1", resp.BookingID)
	assert.Equal(t, db.BookingPending, resp.Status)

	_, err = f.svc.VerifyPayment(&db.User{ID: 99}, "cs_old")
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httpCode(t, err))
}

func TestCalendarLinkEncodesSlotTimes(t *testing.T) {
	f := newBookingFixture(t)
	seedBooking(f, db.BookingPaid)

	link, err := f.svc.CalendarLink(f.user, "bk-1")
	require.NoError(t, err)
	assert.Contains(t, link, "calendar.google.com")
	assert.Contains(t, link, f.slot.StartTime.UTC().Format("20060102T150405Z"))
}
