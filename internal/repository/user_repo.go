package repository

import (
	"database/sql"
	"errors"

	"turfbooking/internal/db"
)

type UserRepository interface {
	GetByID(id int64) (*db.User, error)
	GetByEmail(email string) (*db.User, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(database *sql.DB) UserRepository {
	return &userRepository{db: database}
}

func (r *userRepository) GetByID(id int64) (*db.User, error) {
	var u db.User
	err := r.db.QueryRow(
		`SELECT id, name, email, phone, password_hash, created_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) GetByEmail(email string) (*db.User, error) {
	var u db.User
	err := r.db.QueryRow(
		`SELECT id, name, email, phone, password_hash, created_at FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
