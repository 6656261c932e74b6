package models

// User is an account that authors posts and comments
type User struct {
	ID             int64  `json:"id" gorm:"primaryKey"`
	Email          string `json:"email" gorm:"uniqueIndex;not null"`
	HashedPassword string `json:"-" gorm:"not null"`
}
