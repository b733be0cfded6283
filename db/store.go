package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chatwire/models"
	"chatwire/services"
)

// ChatStore implements services.Store on PostgreSQL
type ChatStore struct {
	db *gorm.DB
}

func NewChatStore(db *gorm.DB) *ChatStore {
	return &ChatStore{db: db}
}

func (s *ChatStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *ChatStore) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", services.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return &user, nil
}

func (s *ChatStore) UserByMobile(ctx context.Context, mobileNumber string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "mobile_number = ?", mobileNumber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: mobile number not registered", services.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return &user, nil
}

func (s *ChatStore) SearchUsers(ctx context.Context, query string, exclude uuid.UUID, limit int) ([]models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var users []models.User
	q := s.db.WithContext(ctx).Where("id <> ?", exclude).Order("name").Limit(limit)
	if query != "" {
		q = q.Where("name ILIKE ? OR mobile_number LIKE ?", "%"+query+"%", "%"+query+"%")
	}
	if err := q.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return users, nil
}

func (s *ChatStore) TouchLastSeen(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Update("last_seen", time.Now()).Error
}

func (s *ChatStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.State == "" {
		msg.State = models.MessageStateSent
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// MarkMessageDelivered performs the sent -> delivered transition. The state
// guard in the WHERE clause makes the transition monotonic and idempotent
// in a single round-trip.
func (s *ChatStore) MarkMessageDelivered(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND state = ?", id, models.MessageStateSent).
		Update("state", models.MessageStateDelivered).Error
	if err != nil {
		return fmt.Errorf("failed to mark message delivered: %w", err)
	}
	return nil
}

// MarkMessageRead performs the transition to read. The returned bool is
// true only for the call that actually moved the state, so read receipts
// fire exactly once.
func (s *ChatStore) MarkMessageRead(ctx context.Context, id uuid.UUID, readAt time.Time) (*models.Message, bool, error) {
	result := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND state IN ?", id, []models.MessageState{models.MessageStateSent, models.MessageStateDelivered}).
		Updates(map[string]interface{}{"state": models.MessageStateRead, "read_at": readAt})
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to mark message read: %w", result.Error)
	}

	var msg models.Message
	if err := s.db.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to fetch message: %w", err)
	}
	return &msg, result.RowsAffected > 0, nil
}

func (s *ChatStore) ChatHistory(ctx context.Context, a, b uuid.UUID, page, limit int) ([]models.Message, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	var messages []models.Message
	err := s.db.WithContext(ctx).
		Where("(from_id = ? AND to_id = ?) OR (from_id = ? AND to_id = ?)", a, b, b, a).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chat history: %w", err)
	}

	// Latest page first, oldest first within the page
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *ChatStore) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.ID == uuid.Nil {
		group.ID = uuid.New()
	}
	if err := s.db.WithContext(ctx).Create(group).Error; err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

func (s *ChatStore) GroupByID(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	var group models.Group
	if err := s.db.WithContext(ctx).Preload("Members").First(&group, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: group %s", services.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch group: %w", err)
	}
	return &group, nil
}

func (s *ChatStore) GroupsForUser(ctx context.Context, userID uuid.UUID) ([]models.Group, error) {
	var groups []models.Group
	err := s.db.WithContext(ctx).
		Joins("JOIN group_members ON group_members.group_id = groups.id").
		Where("group_members.user_id = ?", userID).
		Find(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch groups: %w", err)
	}
	return groups, nil
}

func (s *ChatStore) IsGroupMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Table("group_members").
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return count > 0, nil
}

func (s *ChatStore) AddGroupMember(ctx context.Context, groupID, userID uuid.UUID) error {
	group := models.Group{ID: groupID}
	user := models.User{ID: userID}
	if err := s.db.WithContext(ctx).Model(&group).Association("Members").Append(&user); err != nil {
		return fmt.Errorf("failed to add group member: %w", err)
	}
	return nil
}

func (s *ChatStore) RemoveGroupMember(ctx context.Context, groupID, userID uuid.UUID) error {
	group := models.Group{ID: groupID}
	user := models.User{ID: userID}
	if err := s.db.WithContext(ctx).Model(&group).Association("Members").Delete(&user); err != nil {
		return fmt.Errorf("failed to remove group member: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&group).Association("Admins").Delete(&user); err != nil {
		return fmt.Errorf("failed to remove group admin: %w", err)
	}
	return nil
}

func (s *ChatStore) CreateGroupMessage(ctx context.Context, msg *models.GroupMessage) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("failed to create group message: %w", err)
	}
	return nil
}

// AddGroupMessageReader grows the reader set; the conflict clause gives the
// union semantics, re-reads do nothing.
func (s *ChatStore) AddGroupMessageReader(ctx context.Context, messageID, userID uuid.UUID) error {
	read := models.GroupMessageRead{
		GroupMessageID: messageID,
		UserID:         userID,
		CreatedAt:      time.Now(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&read).Error
	if err != nil {
		return fmt.Errorf("failed to record group message read: %w", err)
	}
	return nil
}

func (s *ChatStore) GroupHistory(ctx context.Context, groupID uuid.UUID, page, limit int) ([]models.GroupMessage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	var messages []models.GroupMessage
	err := s.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch group history: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
