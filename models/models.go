package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account, keyed by mobile number
type User struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	MobileNumber string    `json:"mobile_number" gorm:"uniqueIndex;not null"`
	Name         string    `json:"name" gorm:"default:User"`
	Avatar       string    `json:"avatar"`
	LastSeen     time.Time `json:"last_seen"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// MessageState is the delivery state of a private message.
// Transitions are monotonic: sent -> delivered -> read.
type MessageState string

const (
	MessageStateSent      MessageState = "sent"
	MessageStateDelivered MessageState = "delivered"
	MessageStateRead      MessageState = "read"
)

// Message represents a private message between two users
type Message struct {
	ID        uuid.UUID    `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	FromID    uuid.UUID    `json:"from" gorm:"type:uuid;not null;index:idx_messages_conversation"`
	ToID      uuid.UUID    `json:"to" gorm:"type:uuid;not null;index:idx_messages_conversation"`
	Text      string       `json:"text" gorm:"not null"`
	State     MessageState `json:"state" gorm:"default:sent;index"`
	ReadAt    *time.Time   `json:"read_at"`
	CreatedAt time.Time    `json:"created_at" gorm:"index"`
	UpdatedAt time.Time    `json:"updated_at"`

	// Relations
	From User `json:"from_user,omitempty" gorm:"foreignKey:FromID"`
	To   User `json:"to_user,omitempty" gorm:"foreignKey:ToID"`
}

func (Message) TableName() string {
	return "messages"
}

// Group represents a chat group
type Group struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	Name        string    `json:"name" gorm:"not null" binding:"required"`
	Description string    `json:"description"`
	Avatar      string    `json:"avatar"`
	CreatedBy   uuid.UUID `json:"created_by" gorm:"type:uuid;not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Relations
	Members []User `json:"members,omitempty" gorm:"many2many:group_members"`
	Admins  []User `json:"admins,omitempty" gorm:"many2many:group_admins"`
}

func (Group) TableName() string {
	return "groups"
}

// GroupMessage represents a message sent to a group
type GroupMessage struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	GroupID   uuid.UUID `json:"group_id" gorm:"type:uuid;not null;index:idx_group_messages_group"`
	FromID    uuid.UUID `json:"from" gorm:"type:uuid;not null"`
	Text      string    `json:"text" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_group_messages_group"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	From   User   `json:"from_user,omitempty" gorm:"foreignKey:FromID"`
	ReadBy []User `json:"read_by,omitempty" gorm:"many2many:group_message_reads"`
}

func (GroupMessage) TableName() string {
	return "group_messages"
}

// GroupMessageRead records one member having read one group message.
// The reader set only grows; duplicate reads are ignored on insert.
type GroupMessageRead struct {
	GroupMessageID uuid.UUID `json:"group_message_id" gorm:"type:uuid;primary_key"`
	UserID         uuid.UUID `json:"user_id" gorm:"type:uuid;primary_key"`
	CreatedAt      time.Time `json:"created_at"`
}

func (GroupMessageRead) TableName() string {
	return "group_message_reads"
}
