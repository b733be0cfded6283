package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"chatwire/models"
)

// Store is the durable persistence collaborator. The realtime core only
// mutates delivery state transiently in memory during the send path and
// delegates persistence here; db.ChatStore implements it on Postgres.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *models.User) error
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UserByMobile(ctx context.Context, mobileNumber string) (*models.User, error)
	SearchUsers(ctx context.Context, query string, exclude uuid.UUID, limit int) ([]models.User, error)
	TouchLastSeen(ctx context.Context, id uuid.UUID) error

	// Private messages
	CreateMessage(ctx context.Context, msg *models.Message) error
	// MarkMessageDelivered transitions sent -> delivered. Re-applying, or
	// applying after read, has no effect.
	MarkMessageDelivered(ctx context.Context, id uuid.UUID) error
	// MarkMessageRead transitions to read and reports whether this call
	// performed the transition. An unknown ID yields (nil, false, nil).
	MarkMessageRead(ctx context.Context, id uuid.UUID, readAt time.Time) (*models.Message, bool, error)
	ChatHistory(ctx context.Context, a, b uuid.UUID, page, limit int) ([]models.Message, error)

	// Groups
	CreateGroup(ctx context.Context, group *models.Group) error
	GroupByID(ctx context.Context, id uuid.UUID) (*models.Group, error)
	GroupsForUser(ctx context.Context, userID uuid.UUID) ([]models.Group, error)
	IsGroupMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
	AddGroupMember(ctx context.Context, groupID, userID uuid.UUID) error
	RemoveGroupMember(ctx context.Context, groupID, userID uuid.UUID) error

	// Group messages
	CreateGroupMessage(ctx context.Context, msg *models.GroupMessage) error
	// AddGroupMessageReader adds a member to the reader set; union
	// semantics, duplicates are ignored.
	AddGroupMessageReader(ctx context.Context, messageID, userID uuid.UUID) error
	GroupHistory(ctx context.Context, groupID uuid.UUID, page, limit int) ([]models.GroupMessage, error)
}
