package models

import "time"

// User roles recognized by the platform.
const (
	RoleStudent   = "student"
	RoleCounselor = "counselor"
	RoleAdmin     = "admin"
)

// User holds the structure for the users collection in mongo.
type User struct {
	ID          string    `json:"_id" bson:"_id"`
	Email       string    `json:"email" bson:"email"`
	Name        string    `json:"name" bson:"name"`
	Password    string    `json:"-" bson:"password"`
	Role        string    `json:"role" bson:"role"`
	Phone       string    `json:"phone,omitempty" bson:"phone,omitempty"`
	IsActive    bool      `json:"isActive" bson:"isActive"`
	IsAvailable bool      `json:"isAvailable" bson:"isAvailable"` // responders toggle this on shift
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Staff reports whether the user may monitor crisis rooms and act on alerts.
func (u *User) Staff() bool {
	return u.Role == RoleCounselor || u.Role == RoleAdmin
}
