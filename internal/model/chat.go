package model

import "time"

// ChatMessage is a row in the global group chat.
type ChatMessage struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name,omitempty"`
	SenderRole Role      `json:"sender_role,omitempty"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// SendMessageRequest is the payload for posting a chat message.
type SendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// LiveClass is a live-class row. RoomID names the conferencing room; the
// portal never hosts the call itself.
type LiveClass struct {
	ID          string     `json:"id"`
	TeacherID   string     `json:"teacher_id"`
	TeacherName string     `json:"teacher_name,omitempty"`
	Title       string     `json:"title"`
	RoomID      string     `json:"room_id"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

// StartClassRequest is the payload for opening a live class.
type StartClassRequest struct {
	Title  string `json:"title" validate:"required"`
	RoomID string `json:"room_id" validate:"required"`
}
