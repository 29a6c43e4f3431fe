package service

import (
	"errors"
	"sync"
	"time"

	"turfbooking/internal/db"
	"turfbooking/internal/repository"
)

type slotKey struct {
	sheetID int64
	slotID  int64
}

type fakeSlotStore struct {
	mu            sync.Mutex
	slots         map[slotKey]*db.Slot
	sheets        map[int64]*db.SlotSheet
	forceLockLoss bool
	released      []slotKey
}

func newFakeSlotStore() *fakeSlotStore {
	return &fakeSlotStore{
		slots:  make(map[slotKey]*db.Slot),
		sheets: make(map[int64]*db.SlotSheet),
	}
}

func (f *fakeSlotStore) addSlot(sheet *db.SlotSheet, slot *db.Slot) {
	f.sheets[sheet.ID] = sheet
	f.slots[slotKey{slot.SheetID, slot.ID}] = slot
}

func (f *fakeSlotStore) GetSlot(sheetID, slotID int64) (*db.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[slotKey{sheetID, slotID}]
	if !ok {
		return nil, repository.ErrSlotNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSlotStore) GetSheet(sheetID int64) (*db.SlotSheet, error) {
	sh, ok := f.sheets[sheetID]
	if !ok {
		return nil, repository.ErrSlotNotFound
	}
	copied := *sh
	return &copied, nil
}

func (f *fakeSlotStore) LockSlot(sheetID, slotID int64, sport string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.forceLockLoss {
		return false, nil
	}
	s, ok := f.slots[slotKey{sheetID, slotID}]
	if !ok || s.Status != db.SlotAvailable {
		return false, nil
	}
	s.Status = db.SlotBooked
	s.BookedForSport = sport
	return true, nil
}

func (f *fakeSlotStore) ReleaseSlot(sheetID, slotID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := slotKey{sheetID, slotID}
	if s, ok := f.slots[key]; ok {
		s.Status = db.SlotAvailable
		s.BookedForSport = ""
	}
	f.released = append(f.released, key)
	return nil
}

func (f *fakeSlotStore) FindSlotByTime(subVenueID int64, start, end time.Time) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, s := range f.slots {
		sheet, ok := f.sheets[key.sheetID]
		if !ok || sheet.SubVenueID != subVenueID {
			continue
		}
		if s.StartTime.Equal(start) && s.EndTime.Equal(end) {
			return key.sheetID, key.slotID, nil
		}
	}
	return 0, 0, repository.ErrSlotNotFound
}

type fakeBookingStore struct {
	mu            sync.Mutex
	bookings      map[string]*db.Booking
	createErr     error
	markPaidCalls int
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{bookings: make(map[string]*db.Booking)}
}

func (f *fakeBookingStore) Create(b *db.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	copied := *b
	f.bookings[b.ID] = &copied
	return nil
}

func (f *fakeBookingStore) GetByID(id string) (*db.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	copied := *b
	return &copied, nil
}

func (f *fakeBookingStore) GetBySessionID(sessionID string) (*db.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.StripeSessionID == sessionID {
			copied := *b
			return &copied, nil
		}
	}
	return nil, repository.ErrBookingNotFound
}

func (f *fakeBookingStore) ListByUser(userID int64) ([]db.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.Booking
	for _, b := range f.bookings {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBookingStore) UpdateStatus(id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return repository.ErrBookingNotFound
	}
	b.Status = status
	return nil
}

func (f *fakeBookingStore) UpdateSession(id, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return repository.ErrBookingNotFound
	}
	b.StripeSessionID = sessionID
	b.Status = db.BookingPending
	return nil
}

func (f *fakeBookingStore) MarkPaid(id, paymentIntentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markPaidCalls++
	b, ok := f.bookings[id]
	if !ok {
		return repository.ErrBookingNotFound
	}
	b.Status = db.BookingPaid
	b.StripePaymentIntentID.String = paymentIntentID
	b.StripePaymentIntentID.Valid = paymentIntentID != ""
	return nil
}

func (f *fakeBookingStore) CountActiveForSlotExcluding(sheetID, slotID int64, excludeBookingID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, b := range f.bookings {
		if b.SheetID == sheetID && b.SlotID == slotID && b.ID != excludeBookingID && b.Status != db.BookingFailed {
			count++
		}
	}
	return count, nil
}

type fakeGameStore struct {
	mu       sync.Mutex
	games    map[string]*db.Game
	players  map[string]map[int64]bool
	requests map[string]map[int64]string
}

func newFakeGameStore() *fakeGameStore {
	return &fakeGameStore{
		games:    make(map[string]*db.Game),
		players:  make(map[string]map[int64]bool),
		requests: make(map[string]map[int64]string),
	}
}

func (f *fakeGameStore) addGame(g *db.Game, playerIDs ...int64) {
	f.games[g.ID] = g
	members := map[int64]bool{g.HostID: true}
	for _, id := range playerIDs {
		members[id] = true
	}
	f.players[g.ID] = members
	f.requests[g.ID] = make(map[int64]string)
}

func (f *fakeGameStore) Create(g *db.Game) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *g
	f.games[g.ID] = &copied
	f.players[g.ID] = map[int64]bool{g.HostID: true}
	f.requests[g.ID] = make(map[int64]string)
	return nil
}

func (f *fakeGameStore) GetByID(id string) (*db.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.games[id]
	if !ok {
		return nil, repository.ErrGameNotFound
	}
	copied := *g
	return &copied, nil
}

func (f *fakeGameStore) CountApprovedPlayers(gameID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.players[gameID]), nil
}

func (f *fakeGameStore) IsApprovedPlayer(gameID string, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.players[gameID][userID], nil
}

func (f *fakeGameStore) CreateJoinRequest(gameID string, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.players[gameID][userID] || f.requests[gameID][userID] == db.JoinPending {
		return repository.ErrAlreadyInvolved
	}
	f.requests[gameID][userID] = db.JoinPending
	return nil
}

func (f *fakeGameStore) ApproveJoinRequest(gameID string, userID int64, maxPlayers int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.requests[gameID][userID] != db.JoinPending {
		return repository.ErrNoPendingJoin
	}
	f.requests[gameID][userID] = db.JoinApproved
	f.players[gameID][userID] = true
	if len(f.players[gameID]) >= maxPlayers {
		f.games[gameID].Status = db.GameFull
	}
	return nil
}

func (f *fakeGameStore) RemovePlayer(gameID string, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.players[gameID][userID] {
		return repository.ErrNotInGame
	}
	delete(f.players[gameID], userID)
	delete(f.requests[gameID], userID)
	g := f.games[gameID]
	if g.Status == db.GameFull && len(f.players[gameID]) < g.MaxPlayers {
		g.Status = db.GameOpen
	}
	return nil
}

func (f *fakeGameStore) UpdateStatus(gameID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.games[gameID]
	if !ok {
		return repository.ErrGameNotFound
	}
	g.Status = status
	return nil
}

func (f *fakeGameStore) SetBookingStatus(gameID, bookingStatus string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.games[gameID]
	if !ok {
		return repository.ErrGameNotFound
	}
	g.BookingStatus = bookingStatus
	return nil
}

func (f *fakeGameStore) Reopen(gameID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.games[gameID]
	if !ok {
		return repository.ErrGameNotFound
	}
	g.Status = db.GameOpen
	g.BookingStatus = db.GameNotBooked
	return nil
}

type fakeVenueStore struct {
	venues    map[int64]*db.Venue
	subVenues map[int64]*db.SubVenue
}

func newFakeVenueStore() *fakeVenueStore {
	return &fakeVenueStore{
		venues:    make(map[int64]*db.Venue),
		subVenues: make(map[int64]*db.SubVenue),
	}
}

func (f *fakeVenueStore) GetVenue(id int64) (*db.Venue, error) {
	v, ok := f.venues[id]
	if !ok {
		return nil, repository.ErrVenueNotFound
	}
	return v, nil
}

func (f *fakeVenueStore) GetSubVenue(id int64) (*db.SubVenue, error) {
	sv, ok := f.subVenues[id]
	if !ok {
		return nil, repository.ErrSubVenueNotFound
	}
	return sv, nil
}

type fakePayments struct {
	err       error
	sessionID string
	url       string
	calls     []CheckoutParams
}

func (f *fakePayments) CreateCheckoutSession(p CheckoutParams) (string, string, error) {
	f.calls = append(f.calls, p)
	if f.err != nil {
		return "", "", f.err
	}
	sessionID := f.sessionID
	if sessionID == "" {
		sessionID = "cs_test_1"
	}
	url := f.url
	if url == "" {
		url = "https://checkout.example.com/" + sessionID
	}
	return sessionID, url, nil
}

var errPaymentDown = errors.New("payment processor unavailable")
