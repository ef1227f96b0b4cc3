package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Account struct {
	ID           uuid.UUID
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type AccountRepository interface {
	Create(ctx context.Context, email, passwordHash string) (*Account, error)
	GetByID(ctx context.Context, accountID uuid.UUID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	UpdateDisplayName(ctx context.Context, accountID uuid.UUID, displayName string) error
}
