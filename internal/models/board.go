package models

import (
	"time"

	"gorm.io/gorm"
)

type Board struct {
	ID            string              `gorm:"primaryKey;size:64" json:"id"`
	Name          string              `gorm:"not null" json:"name"`
	OwnerID       uint                `gorm:"index;not null" json:"owner_id"`
	Owner         *User               `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Data          BoardData           `json:"data"`
	Sessions      []BoardSession      `json:"-"`
	Collaborators []BoardCollaborator `json:"-"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	DeletedAt     gorm.DeletedAt      `gorm:"index" json:"-"`
}

// BoardSession is one live editing period of a board. A session ends when
// the last participant leaves the room.
type BoardSession struct {
	gorm.Model
	BoardID   string     `gorm:"index;size:64;not null" json:"board_id"`
	Active    bool       `gorm:"index;default:true" json:"active"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
}

type BoardCollaborator struct {
	gorm.Model
	BoardID string `gorm:"uniqueIndex:idx_board_user;size:64;not null" json:"board_id"`
	UserID  uint   `gorm:"uniqueIndex:idx_board_user;not null" json:"user_id"`
}

type CreateBoardRequestBody struct {
	Name string `json:"name"`
}

type SaveBoardRequestBody struct {
	Data BoardData `json:"data"`
}

type BoardResponse struct {
	Board   Board         `json:"board"`
	Session *BoardSession `json:"session"`
}

type DashboardBoard struct {
	Board       Board `json:"board"`
	ActiveUsers int   `json:"active_users"`
}

type DashboardResponse struct {
	ActiveNow    []DashboardBoard `json:"active_now"`
	MyBoards     []Board          `json:"my_boards"`
	SharedWithMe []Board          `json:"shared_with_me"`
}
