package models

import "time"

// ChatMessage is one entry of a room's append-only chat log.
type ChatMessage struct {
	ID        string    `gorm:"primaryKey;size:27" json:"id"`
	BoardID   string    `gorm:"index:idx_chat_board_time;size:64;not null" json:"roomId"`
	UserName  string    `gorm:"not null" json:"userName"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Timestamp time.Time `gorm:"index:idx_chat_board_time" json:"timestamp"`
}
