package entity

import "time"

// User represents the centralized authentication table
type User struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Email     string    `gorm:"type:varchar(255);uniqueIndex:idx_users_email;not null" json:"email"`
	Password  string    `gorm:"type:text;not null" json:"-"`
	Role      Role      `gorm:"type:varchar(20);not null;index" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// CallerIdentity is the optional authenticated principal behind a request.
// A nil *CallerIdentity means the caller is anonymous.
type CallerIdentity struct {
	UserID int64
	Email  string
	Role   Role
}

func (c *CallerIdentity) IsPatient() bool {
	return c != nil && c.Role == RolePatient
}

func (c *CallerIdentity) IsDoctor() bool {
	return c != nil && c.Role == RoleDoctor
}
