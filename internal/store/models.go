package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
)

// User is an account that owns calendars.
type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Calendar is a named collection of events with exactly one owner.
type Calendar struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Name        string
	Description *string
	Color       *string
	IsPublic    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OwnedBy reports whether userID owns the calendar.
func (c *Calendar) OwnedBy(userID uuid.UUID) bool {
	return c != nil && c.UserID == userID
}

// ReadableBy reports whether userID may read the calendar's contents.
func (c *Calendar) ReadableBy(userID uuid.UUID) bool {
	return c.OwnedBy(userID) || (c != nil && c.IsPublic)
}

// Event is a timed entry in a calendar. Start and end are stored in UTC.
type Event struct {
	ID          uuid.UUID
	CalendarID  uuid.UUID
	Title       string
	Description *string
	Location    *string
	StartTime   time.Time
	EndTime     time.Time
	IsAllDay    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EventDraft carries the fields of an event that has not been stored yet.
type EventDraft struct {
	Title       string
	Description *string
	Location    *string
	StartTime   time.Time
	EndTime     time.Time
	IsAllDay    bool
}

// CalendarUpdate lists the calendar fields to change; absent options are left as-is.
type CalendarUpdate struct {
	Name        mo.Option[string]
	Description mo.Option[string]
	Color       mo.Option[string]
	IsPublic    mo.Option[bool]
}

// EventUpdate lists the event fields to change; absent options are left as-is.
type EventUpdate struct {
	Title       mo.Option[string]
	Description mo.Option[string]
	Location    mo.Option[string]
	StartTime   mo.Option[time.Time]
	EndTime     mo.Option[time.Time]
	IsAllDay    mo.Option[bool]
}

// PermissionLevel is the access a share grants.
type PermissionLevel string

const (
	PermissionRead  PermissionLevel = "read"
	PermissionWrite PermissionLevel = "write"
	PermissionAdmin PermissionLevel = "admin"
)

// Valid reports whether p is a known level.
func (p PermissionLevel) Valid() bool {
	switch p {
	case PermissionRead, PermissionWrite, PermissionAdmin:
		return true
	}
	return false
}

// Share records that a calendar was shared with another person.
type Share struct {
	ID               uuid.UUID
	CalendarID       uuid.UUID
	UserID           uuid.UUID
	SharedWithUserID *uuid.UUID
	SharedWithEmail  string
	Permission       PermissionLevel
	CreatedAt        time.Time
}
