package models

import "time"

// Player is a local snapshot of user data owned by the auth service.
// Populated solely by the user event consumer from the lifecycle event
// stream; gameplay and tournament code only read it (existence checks,
// roster display). Eventually consistent — last write wins on redelivery.
type Player struct {
	ID        int64     `gorm:"primaryKey" json:"id"` // the auth service's numeric user id
	Username  string    `gorm:"index;not null" json:"username"`
	Avatar    string    `json:"avatar,omitempty"`
	// Carries the event's own timestamp, not local wall-clock time, so
	// gorm's automatic update tracking is disabled.
	UpdatedAt time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
}
