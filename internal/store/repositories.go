package store

import (
	"context"

	"github.com/google/uuid"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user User) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// CalendarRepository handles the calendar lifecycle.
type CalendarRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Calendar, error)
	ListByOwner(ctx context.Context, userID uuid.UUID) ([]Calendar, error)
	Create(ctx context.Context, cal Calendar) (*Calendar, error)
	Update(ctx context.Context, id uuid.UUID, update CalendarUpdate) (*Calendar, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// EventRepository handles event storage.
type EventRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	ListForCalendar(ctx context.Context, calendarID uuid.UUID) ([]Event, error)
	Create(ctx context.Context, calendarID uuid.UUID, draft EventDraft) (*Event, error)
	Update(ctx context.Context, id uuid.UUID, update EventUpdate) (*Event, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ShareRepository stores calendar shares.
type ShareRepository interface {
	Create(ctx context.Context, share Share) (*Share, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Share, error)
	ListForCalendar(ctx context.Context, calendarID uuid.UUID) ([]Share, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
