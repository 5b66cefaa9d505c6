package entity

import "time"

// Doctor is the public profile of a DOCTOR account
type Doctor struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"not null;uniqueIndex:idx_doctors_user_id" json:"user_id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Specialty string    `gorm:"type:varchar(255);not null;index" json:"specialty"`
	City      string    `gorm:"type:varchar(255)" json:"city"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relationships
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Doctor) TableName() string {
	return "doctors"
}
