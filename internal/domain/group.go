package domain

import (
	"context"
	"time"
)

// GroupRetention is how long a group may go unvisited before cleanup removes it
const GroupRetention = 90 * 24 * time.Hour

// Group is an ad-hoc expense group addressed by its random id
type Group struct {
	ID           string    `json:"id"`
	Participants []string  `json:"participants"`
	Expenses     []Expense `json:"expenses"`
	CreatedAt    time.Time `json:"createdAt"`
	LastAccessed time.Time `json:"lastAccessed"`
}

// GroupExport is the downloadable snapshot of a group
type GroupExport struct {
	GroupID      string    `json:"group_id"`
	Participants []string  `json:"participants"`
	Expenses     []Expense `json:"expenses"`
	ExportedAt   time.Time `json:"exported_at"`
}

// GroupRepository defines the interface for group persistence operations
type GroupRepository interface {
	GetByID(ctx context.Context, id string) (*Group, error)
	// GetOrCreate returns the group, creating an empty one if needed, and
	// stamps its last access time.
	GetOrCreate(ctx context.Context, id string, accessedAt time.Time) (*Group, error)
	// ReplaceContents swaps participants and every expense in one transaction,
	// creating the group when it does not exist.
	ReplaceContents(ctx context.Context, id string, participants []string, expenses []Expense, at time.Time) error
	// DeleteInactiveSince removes groups last accessed before cutoff and
	// returns their ids.
	DeleteInactiveSince(ctx context.Context, cutoff time.Time) ([]string, error)
	Ping(ctx context.Context) error
}
