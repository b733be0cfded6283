package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Inbound event names
const (
	EventPrivateMessage   = "private_message"
	EventMessageRead      = "message_read"
	EventTyping           = "typing"
	EventJoinMyGroups     = "join_my_groups"
	EventJoinGroup        = "join_group"
	EventGroupMessage     = "group_message"
	EventLeaveGroup       = "leave_group"
	EventGroupMessageRead = "group_message_read"
)

// Outbound event names
const (
	EventConnected            = "connected"
	EventUserOnline           = "user_online"
	EventUserOffline          = "user_offline"
	EventReceiveMessage       = "receive_message"
	EventMessageDelivered     = "message_delivered"
	EventMessageSent          = "message_sent"
	EventMessageReadReceipt   = "message_read_receipt"
	EventTypingStatus         = "typing_status"
	EventGroupMessageReceived = "group_message_received"
	EventMemberLeft           = "member_left"
	EventError                = "error"
)

// Envelope is the wire format for every event in both directions
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound payloads

type PrivateMessagePayload struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

func (p PrivateMessagePayload) Validate() error {
	if p.To == "" || p.Text == "" {
		return fmt.Errorf("private_message requires 'to' and 'text'")
	}
	return nil
}

type MessageReadPayload struct {
	MessageID string `json:"messageId"`
}

func (p MessageReadPayload) Validate() error {
	if p.MessageID == "" {
		return fmt.Errorf("message_read requires 'messageId'")
	}
	return nil
}

type TypingPayload struct {
	To       string `json:"to"`
	IsTyping bool   `json:"isTyping"`
}

func (p TypingPayload) Validate() error {
	if p.To == "" {
		return fmt.Errorf("typing requires 'to'")
	}
	return nil
}

type JoinGroupPayload struct {
	GroupID string `json:"groupId"`
}

func (p JoinGroupPayload) Validate() error {
	if p.GroupID == "" {
		return fmt.Errorf("group event requires 'groupId'")
	}
	return nil
}

type GroupMessagePayload struct {
	GroupID string `json:"groupId"`
	Text    string `json:"text"`
}

func (p GroupMessagePayload) Validate() error {
	if p.GroupID == "" || p.Text == "" {
		return fmt.Errorf("group_message requires 'groupId' and 'text'")
	}
	return nil
}

// Outbound payloads

type ConnectedPayload struct {
	UserID string `json:"userId"`
}

type PresencePayload struct {
	UserID string `json:"userId"`
}

type ReceiveMessagePayload struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type MessageDeliveredPayload struct {
	MessageID string `json:"messageId"`
}

type MessageSentPayload struct {
	MessageID string `json:"messageId"`
	Delivered bool   `json:"delivered"`
}

type MessageReadReceiptPayload struct {
	MessageID string    `json:"messageId"`
	ReadBy    string    `json:"readBy"`
	ReadAt    time.Time `json:"readAt"`
}

type TypingStatusPayload struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

type GroupMessageReceivedPayload struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"groupId"`
	From      string    `json:"from"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type MemberLeftPayload struct {
	GroupID string `json:"groupId"`
	UserID  string `json:"userId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// NewEnvelope builds a serialized envelope for an outbound event
func NewEnvelope(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// DecodeEnvelope parses a raw inbound frame into an envelope
func DecodeEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid event frame: %w", err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("event frame missing 'event' field")
	}
	return &env, nil
}
