package store

import (
	"context"
	"database/sql"

	"github.com/medicore/hospital-portal/app/models"
)

type Storage struct {
	Users interface {
		GetByID(ctx context.Context, id int64) (*models.User, error)
		GetByEmail(ctx context.Context, email string) (*models.User, error)
		Create(ctx context.Context, user *models.User) error
		Update(ctx context.Context, user *models.User) error
		Delete(ctx context.Context, id int64) error
	}
}

func NewStorage(db *sql.DB) Storage {
	return Storage{
		Users: &UsersStore{db: db},
	}
}
