package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"turfbooking/internal/db"
)

var (
	ErrVenueNotFound    = errors.New("venue not found")
	ErrSubVenueNotFound = errors.New("sub-venue not found")
)

type VenueRepository struct {
	DB *sql.DB
}

func NewVenueRepository(database *sql.DB) *VenueRepository {
	return &VenueRepository{DB: database}
}

func (r *VenueRepository) GetVenue(id int64) (*db.Venue, error) {
	var v db.Venue
	err := r.DB.QueryRow(
		`SELECT id, name, city, latitude, longitude FROM venues WHERE id = $1`, id).
		Scan(&v.ID, &v.Name, &v.City, &v.Latitude, &v.Longitude)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVenueNotFound
		}
		return nil, fmt.Errorf("error querying venue %d: %w", id, err)
	}
	return &v, nil
}

func (r *VenueRepository) GetSubVenue(id int64) (*db.SubVenue, error) {
	var sv db.SubVenue
	err := r.DB.QueryRow(
		`SELECT id, venue_id, name, sports FROM sub_venues WHERE id = $1`, id).
		Scan(&sv.ID, &sv.VenueID, &sv.Name, pq.Array(&sv.Sports))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubVenueNotFound
		}
		return nil, fmt.Errorf("error querying sub-venue %d: %w", id, err)
	}
	return &sv, nil
}
