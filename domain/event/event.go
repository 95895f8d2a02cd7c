// Package event defines the outbound events delivered to connected clients.
// Every event is a self-describing JSON frame: the Type field is the wire
// discriminator, so structs here marshal directly onto the socket.
package event

import (
	"time"

	"chat-rooms/domain"

	"github.com/samber/lo"
)

const (
	ChatMessageType    = "chat_message"
	UserTypingType     = "user_typing"
	ReadReceiptType    = "read_receipt"
	RoomInfoType       = "room_info"
	RecentMessagesType = "recent_messages"
	UserJoinedType     = "user_joined"
	UserLeftType       = "user_left"
	ErrorType          = "error"
)

type DomainEvent interface {
	EventType() string
}

type ChatMessage struct {
	Type      string    `json:"type"`
	MessageID string    `json:"message_id"`
	Sender    string    `json:"sender"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	IsEdited  bool      `json:"is_edited"`
}

func (e ChatMessage) EventType() string { return ChatMessageType }

func NewChatMessage(m domain.Message) ChatMessage {
	return ChatMessage{
		Type:      ChatMessageType,
		MessageID: m.ID.String(),
		Sender:    m.Sender,
		SenderID:  m.SenderID,
		Content:   m.Content,
		Timestamp: m.CreatedAt,
		IsEdited:  m.Edited,
	}
}

type UserTyping struct {
	Type   string `json:"type"`
	User   string `json:"user"`
	UserID string `json:"user_id"`
	Typing bool   `json:"typing"`
}

func (e UserTyping) EventType() string { return UserTypingType }

func NewUserTyping(ident domain.Identity, typing bool) UserTyping {
	return UserTyping{Type: UserTypingType, User: ident.Username, UserID: ident.UserID, Typing: typing}
}

type ReadReceipt struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
	User      string `json:"user"`
	UserID    string `json:"user_id"`
}

func (e ReadReceipt) EventType() string { return ReadReceiptType }

func NewReadReceipt(messageID string, ident domain.Identity) ReadReceipt {
	return ReadReceipt{Type: ReadReceiptType, MessageID: messageID, User: ident.Username, UserID: ident.UserID}
}

type Participant struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsOnline bool   `json:"is_online"`
}

type RoomSnapshot struct {
	RoomID       string        `json:"room_id"`
	RoomName     string        `json:"room_name"`
	RoomType     string        `json:"room_type"`
	Participants []Participant `json:"participants"`
}

// RoomInfo is sent to the joining connection only, never broadcast.
type RoomInfo struct {
	Type string       `json:"type"`
	Room RoomSnapshot `json:"room"`
}

func (e RoomInfo) EventType() string { return RoomInfoType }

type MessageInfo struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	IsEdited  bool      `json:"is_edited"`
	ReadBy    []string  `json:"read_by"`
}

type RecentMessages struct {
	Type     string        `json:"type"`
	Messages []MessageInfo `json:"messages"`
}

func (e RecentMessages) EventType() string { return RecentMessagesType }

func NewRecentMessages(messages []domain.Message) RecentMessages {
	return RecentMessages{
		Type: RecentMessagesType,
		Messages: lo.Map(messages, func(m domain.Message, _ int) MessageInfo {
			return MessageInfo{
				ID:        m.ID.String(),
				Sender:    m.Sender,
				SenderID:  m.SenderID,
				Content:   m.Content,
				Timestamp: m.CreatedAt,
				IsEdited:  m.Edited,
				ReadBy:    m.ReadBy,
			}
		}),
	}
}

type UserJoined struct {
	Type   string `json:"type"`
	User   string `json:"user"`
	UserID string `json:"user_id"`
}

func (e UserJoined) EventType() string { return UserJoinedType }

func NewUserJoined(ident domain.Identity) UserJoined {
	return UserJoined{Type: UserJoinedType, User: ident.Username, UserID: ident.UserID}
}

type UserLeft struct {
	Type   string `json:"type"`
	User   string `json:"user"`
	UserID string `json:"user_id"`
}

func (e UserLeft) EventType() string { return UserLeftType }

func NewUserLeft(ident domain.Identity) UserLeft {
	return UserLeft{Type: UserLeftType, User: ident.Username, UserID: ident.UserID}
}

// Error is surfaced to the acting connection only; peers never observe it.
type Error struct {
	Type   string `json:"type"`
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

func (e Error) EventType() string { return ErrorType }

func NewError(code, detail string) Error {
	return Error{Type: ErrorType, Code: code, Detail: detail}
}
