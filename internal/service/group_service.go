package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dafibh/brokewise/brokewise-backend/internal/domain"
	"github.com/dafibh/brokewise/brokewise-backend/internal/websocket"
	nanoid "github.com/jaevor/go-nanoid"
	"github.com/rs/zerolog/log"
)

// GroupUpdatedPayload is broadcast after a group's contents are replaced
type GroupUpdatedPayload struct {
	GroupID      string   `json:"groupId"`
	Participants []string `json:"participants"`
	ExpenseCount int      `json:"expenseCount"`
}

// GroupDeletedPayload is broadcast when cleanup removes a group
type GroupDeletedPayload struct {
	GroupID string `json:"groupId"`
}

// GroupService handles business logic for shareable expense groups
type GroupService struct {
	groupRepo      domain.GroupRepository
	eventPublisher websocket.EventPublisher
	newID          func() string
	now            func() time.Time
}

// NewGroupService creates a new GroupService
func NewGroupService(groupRepo domain.GroupRepository) (*GroupService, error) {
	newID, err := nanoid.Standard(domain.GroupIDLength)
	if err != nil {
		return nil, fmt.Errorf("failed to create group id generator: %w", err)
	}
	return &GroupService{
		groupRepo: groupRepo,
		newID:     newID,
		now:       time.Now,
	}, nil
}

// SetEventPublisher sets the WebSocket event publisher
func (s *GroupService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *GroupService) publishEvent(groupID string, event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(groupID, event)
	}
}

// NewGroupID returns a fresh random group id
func (s *GroupService) NewGroupID() string {
	return s.newID()
}

// Open returns the group, creating it when it does not exist, and records the visit
func (s *GroupService) Open(ctx context.Context, id string) (*domain.Group, error) {
	if err := ValidateGroupID(id); err != nil {
		return nil, err
	}
	return s.groupRepo.GetOrCreate(ctx, id, s.now().UTC())
}

// Get returns an existing group
func (s *GroupService) Get(ctx context.Context, id string) (*domain.Group, error) {
	if err := ValidateGroupID(id); err != nil {
		return nil, err
	}
	return s.groupRepo.GetByID(ctx, id)
}

// Save replaces the participants and expenses of a group
func (s *GroupService) Save(ctx context.Context, id string, participants []string, expenses []domain.Expense) error {
	if err := ValidateGroupID(id); err != nil {
		return err
	}
	if participants == nil {
		participants = []string{}
	}
	known, err := domain.ParticipantSet(participants)
	if err != nil {
		return err
	}
	expenses = cloneExpenses(expenses)
	if err := domain.ValidateForStorage(known, expenses); err != nil {
		return err
	}

	if err := s.groupRepo.ReplaceContents(ctx, id, participants, expenses, s.now().UTC()); err != nil {
		return err
	}

	log.Debug().
		Str("group_id", id).
		Int("participants", len(participants)).
		Int("expenses", len(expenses)).
		Msg("Group saved")

	s.publishEvent(id, websocket.GroupUpdated(GroupUpdatedPayload{
		GroupID:      id,
		Participants: participants,
		ExpenseCount: len(expenses),
	}))
	return nil
}

// Export returns a downloadable snapshot of a group
func (s *GroupService) Export(ctx context.Context, id string) (*domain.GroupExport, error) {
	group, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.GroupExport{
		GroupID:      group.ID,
		Participants: group.Participants,
		Expenses:     group.Expenses,
		ExportedAt:   s.now().UTC(),
	}, nil
}

// DeleteInactive removes every group last accessed before cutoff and
// notifies anyone still watching them
func (s *GroupService) DeleteInactive(ctx context.Context, cutoff time.Time) (int64, error) {
	ids, err := s.groupRepo.DeleteInactiveSince(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		s.publishEvent(id, websocket.GroupDeleted(GroupDeletedPayload{GroupID: id}))
	}
	return int64(len(ids)), nil
}

// ValidateGroupID checks that id is a non-empty URL-safe token no longer than a generated id
func ValidateGroupID(id string) error {
	if id == "" || len(id) > domain.GroupIDLength {
		return domain.ErrInvalidGroupID
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return domain.ErrInvalidGroupID
		}
	}
	return nil
}
