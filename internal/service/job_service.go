package service

import (
	"fmt"
	"log"
	"time"

	"turfbooking/internal/repository"
)

// failedBookingRetention is how long failed bookings stay queryable for
// retry before the sweep purges them.
const failedBookingRetention = 30 * 24 * time.Hour

type JobService struct {
	Games    *repository.GameRepository
	Bookings *repository.BookingRepository
}

func NewJobService(games *repository.GameRepository, bookings *repository.BookingRepository) *JobService {
	return &JobService{Games: games, Bookings: bookings}
}

// CompletePastGames marks games whose slot has ended as completed.
func (s *JobService) CompletePastGames() error {
	updated, err := s.Games.CompletePastGames()
	if err != nil {
		return fmt.Errorf("cron job: failed to complete past games: %w", err)
	}
	if updated > 0 {
		log.Printf("Cron Job: marked %d games as completed.", updated)
	}
	return nil
}

// PurgeFailedBookings deletes failed bookings past the retention window.
func (s *JobService) PurgeFailedBookings() error {
	deleted, err := s.Bookings.DeleteFailedOlderThan(time.Now().UTC().Add(-failedBookingRetention))
	if err != nil {
		return fmt.Errorf("cron job: failed to purge failed bookings: %w", err)
	}
	if deleted > 0 {
		log.Printf("Cron Job: purged %d failed bookings.", deleted)
	}
	return nil
}
