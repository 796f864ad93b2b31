package models

import "time"

// Tournament statuses. PENDING→STARTED happens exactly once, on the
// fourth join; FINISHED once both the final and the little final have
// a winner.
const (
	TournamentPending  = "PENDING"
	TournamentStarted  = "STARTED"
	TournamentFinished = "FINISHED"
)

// TournamentSize is fixed: 4-player single elimination, no other formats.
const TournamentSize = 4

// Tournament represents one 4-player single-elimination bracket.
type Tournament struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	CreatorID int64     `gorm:"index;not null" json:"creator_id"`
	Status    string    `gorm:"type:varchar(16);default:'PENDING'" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relationships
	Players []TournamentPlayer `gorm:"foreignKey:TournamentID" json:"players,omitempty"`
	Matches []Match            `gorm:"foreignKey:TournamentID" json:"matches,omitempty"`
}

// TournamentPlayer is one occupied bracket slot (1-4). A player holds
// at most one slot per tournament; slots are assigned in join order and
// never reused or compacted (leaving mid-tournament is not supported).
type TournamentPlayer struct {
	TournamentID  string    `gorm:"primaryKey;type:uuid;uniqueIndex:idx_tournament_slot" json:"tournament_id"`
	PlayerID      int64     `gorm:"primaryKey" json:"player_id"`
	Slot          int       `gorm:"not null;uniqueIndex:idx_tournament_slot" json:"slot"`
	FinalPosition *int      `json:"final_position,omitempty"` // 1-4, set when the tournament finishes
	JoinedAt      time.Time `gorm:"autoCreateTime" json:"joined_at"`
}
