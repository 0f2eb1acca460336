package store

import "time"

// GORM models used for persistence.
type UserModel struct {
	ID             string    `gorm:"primaryKey"`
	Credits        int64     `gorm:"not null;default:0"`
	TotalCreations int64     `gorm:"not null;default:0"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

type ProjectModel struct {
	ID               string `gorm:"primaryKey"`
	OwnerID          string `gorm:"not null;index"`
	Name             string `gorm:"not null"`
	InitialPrompt    string `gorm:"not null"`
	CurrentCode      string
	CurrentVersionID *string
	Status           string    `gorm:"not null"`
	Published        bool      `gorm:"not null;default:false;index"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null;index"`
}

type VersionModel struct {
	ID          string    `gorm:"primaryKey"`
	ProjectID   string    `gorm:"not null;index"`
	Code        string    `gorm:"not null"`
	Description string    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null;index"`
}

type MessageModel struct {
	ID        string    `gorm:"primaryKey"`
	ProjectID string    `gorm:"not null;index"`
	Role      string    `gorm:"not null"`
	Content   string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}
