package service

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"turfbooking/internal/db"
	"turfbooking/internal/entities"
	apperrors "turfbooking/internal/errors"
	"turfbooking/internal/repository"
)

// cancelWindow is the minimum lead time before slot start for a
// host-initiated cancellation.
const cancelWindow = 2 * time.Hour

type GameService struct {
	games  GameStore
	slots  SlotStore
	venues VenueStore
}

func NewGameService(games GameStore, slots SlotStore, venues VenueStore) *GameService {
	return &GameService{games: games, slots: slots, venues: venues}
}

// CreateGame opens a new multi-player game hosted by the requester. The
// sub-venue must offer the sport and the slot must carry a price for it;
// the slot itself is not locked until the game books.
func (s *GameService) CreateGame(user *db.User, req entities.CreateGameRequest) (*entities.GameResponse, error) {
	if req.SubVenueID <= 0 || req.SheetID <= 0 || req.SlotID <= 0 || req.Sport == "" {
		return nil, apperrors.Validation("sub_venue_id, time_slot_id, slot_id and sport are required")
	}
	if req.MinPlayers < 2 || req.MaxPlayers < req.MinPlayers {
		return nil, apperrors.Validation("min_players must be at least 2 and max_players must be at least min_players")
	}

	subVenue, err := s.venues.GetSubVenue(req.SubVenueID)
	if err != nil {
		if errors.Is(err, repository.ErrSubVenueNotFound) {
			return nil, apperrors.NotFound("Sub-venue not found")
		}
		log.Printf("Error loading sub-venue %d: %v", req.SubVenueID, err)
		return nil, apperrors.Dependency("Could not load sub-venue")
	}
	if !sportOffered(subVenue.Sports, req.Sport) {
		return nil, apperrors.Validation(fmt.Sprintf("%s is not available at this sub-venue", req.Sport))
	}

	slot, err := s.slots.GetSlot(req.SheetID, req.SlotID)
	if err != nil {
		if errors.Is(err, repository.ErrSlotNotFound) {
			return nil, apperrors.NotFound("Slot not found")
		}
		log.Printf("Error loading slot %d/%d: %v", req.SheetID, req.SlotID, err)
		return nil, apperrors.Dependency("Could not load slot")
	}
	sheet, err := s.slots.GetSheet(req.SheetID)
	if err != nil {
		if errors.Is(err, repository.ErrSlotNotFound) {
			return nil, apperrors.NotFound("Slot not found")
		}
		log.Printf("Error loading slot sheet %d: %v", req.SheetID, err)
		return nil, apperrors.Dependency("Could not load slot")
	}
	if sheet.SubVenueID != req.SubVenueID {
		return nil, apperrors.Validation("Slot does not belong to the given sub-venue")
	}
	if !slot.StartTime.After(time.Now().UTC()) {
		return nil, apperrors.Validation("Slot start time has passed")
	}

	prices, err := entities.ParseSportPrices(slot.Prices)
	if err != nil {
		log.Printf("Error parsing prices for slot %d/%d: %v", req.SheetID, req.SlotID, err)
		return nil, apperrors.Dependency("Could not read slot prices")
	}
	if _, ok := prices.PriceFor(req.Sport); !ok {
		return nil, apperrors.Validation(fmt.Sprintf("No price configured for sport %s", req.Sport))
	}

	now := time.Now().UTC()
	g := &db.Game{
		ID:            uuid.NewString(),
		HostID:        user.ID,
		Sport:         req.Sport,
		VenueID:       subVenue.VenueID,
		SubVenueID:    subVenue.ID,
		SheetID:       req.SheetID,
		SlotID:        req.SlotID,
		MinPlayers:    req.MinPlayers,
		MaxPlayers:    req.MaxPlayers,
		Status:        db.GameOpen,
		BookingStatus: db.GameNotBooked,
		StartTime:     slot.StartTime,
		EndTime:       slot.EndTime,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.games.Create(g); err != nil {
		log.Printf("Error creating game: %v", err)
		return nil, apperrors.Dependency("Could not create game")
	}
	return s.toGameResponse(g)
}

// RequestJoin queues a join request for the host to approve.
func (s *GameService) RequestJoin(user *db.User, gameID string) error {
	g, err := s.loadGame(gameID)
	if err != nil {
		return err
	}
	if g.Status != db.GameOpen {
		return apperrors.Validation("Game is not open for new players")
	}
	if err := s.games.CreateJoinRequest(g.ID, user.ID); err != nil {
		if errors.Is(err, repository.ErrAlreadyInvolved) {
			return apperrors.Validation("You have already requested or joined this game")
		}
		log.Printf("Error creating join request for game %s: %v", g.ID, err)
		return apperrors.Dependency("Could not create join request")
	}
	return nil
}

// ApproveJoin moves a pending requester into the approved player set.
// Host only. The list update and any open -> full transition happen in one
// transaction inside the store.
func (s *GameService) ApproveJoin(user *db.User, gameID string, playerID int64) error {
	g, err := s.loadGame(gameID)
	if err != nil {
		return err
	}
	if g.HostID != user.ID {
		return apperrors.Authorization("Only the host can approve join requests")
	}
	if g.Status != db.GameOpen {
		return apperrors.Validation("Game is not open for new players")
	}
	if err := s.games.ApproveJoinRequest(g.ID, playerID, g.MaxPlayers); err != nil {
		if errors.Is(err, repository.ErrNoPendingJoin) {
			return apperrors.NotFound("No pending join request for this user")
		}
		log.Printf("Error approving join for game %s: %v", g.ID, err)
		return apperrors.Dependency("Could not approve join request")
	}
	return nil
}

// LeaveGame removes the requester from the approved player set and any
// pending join requests, atomically. A full game reverts to open when the
// drop brings it under capacity.
func (s *GameService) LeaveGame(user *db.User, gameID string) error {
	g, err := s.loadGame(gameID)
	if err != nil {
		return err
	}
	if g.HostID == user.ID {
		return apperrors.Validation("The host cannot leave; cancel the game instead")
	}
	switch g.Status {
	case db.GameCancelled, db.GameCompleted:
		return apperrors.Validation("Game is no longer active")
	}
	if err := s.games.RemovePlayer(g.ID, user.ID); err != nil {
		if errors.Is(err, repository.ErrNotInGame) {
			return apperrors.Validation("You are not an approved player of this game")
		}
		log.Printf("Error removing player from game %s: %v", g.ID, err)
		return apperrors.Dependency("Could not leave game")
	}
	return nil
}

// CancelGame is host-initiated and allowed only before the game is booked
// and more than two hours before slot start.
func (s *GameService) CancelGame(user *db.User, gameID string) error {
	g, err := s.loadGame(gameID)
	if err != nil {
		return err
	}
	if g.HostID != user.ID {
		return apperrors.Authorization("Only the host can cancel this game")
	}
	switch g.Status {
	case db.GameCancelled:
		return apperrors.Validation("Game is already cancelled")
	case db.GameCompleted:
		return apperrors.Validation("Game is already completed")
	}
	if g.BookingStatus == db.GameBooked || g.Status == db.GameBookingPending {
		return apperrors.Validation("Game is already booked")
	}
	if time.Until(g.StartTime) < cancelWindow {
		return apperrors.Validation("Games can only be cancelled more than 2 hours before the slot start time")
	}
	if err := s.games.UpdateStatus(g.ID, db.GameCancelled); err != nil {
		log.Printf("Error cancelling game %s: %v", g.ID, err)
		return apperrors.Dependency("Could not cancel game")
	}
	return nil
}

func (s *GameService) GetGame(gameID string) (*entities.GameResponse, error) {
	g, err := s.loadGame(gameID)
	if err != nil {
		return nil, err
	}
	return s.toGameResponse(g)
}

func (s *GameService) loadGame(gameID string) (*db.Game, error) {
	g, err := s.games.GetByID(gameID)
	if err != nil {
		if errors.Is(err, repository.ErrGameNotFound) {
			return nil, apperrors.NotFound("Game not found")
		}
		log.Printf("Error loading game %s: %v", gameID, err)
		return nil, apperrors.Dependency("Could not load game")
	}
	return g, nil
}

func (s *GameService) toGameResponse(g *db.Game) (*entities.GameResponse, error) {
	players, err := s.games.CountApprovedPlayers(g.ID)
	if err != nil {
		log.Printf("Error counting players for game %s: %v", g.ID, err)
		return nil, apperrors.Dependency("Could not load game players")
	}
	return &entities.GameResponse{
		ID:            g.ID,
		HostID:        g.HostID,
		Sport:         g.Sport,
		SubVenueID:    g.SubVenueID,
		MinPlayers:    g.MinPlayers,
		MaxPlayers:    g.MaxPlayers,
		PlayerCount:   players,
		Status:        g.Status,
		BookingStatus: g.BookingStatus,
		StartTime:     g.StartTime,
		EndTime:       g.EndTime,
	}, nil
}

func sportOffered(sports []string, sport string) bool {
	for _, s := range sports {
		if s == sport {
			return true
		}
	}
	return false
}
