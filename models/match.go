package models

import "time"

// Bracket round tags. Ad hoc matches carry no round. The unique
// (tournament_id, round) index is the last-resort guard against the
// bracket being generated twice by concurrent semifinal completions.
const (
	RoundNone        = ""
	RoundSemi1       = "SEMI_1"
	RoundSemi2       = "SEMI_2"
	RoundLittleFinal = "LITTLE_FINAL"
	RoundFinal       = "FINAL"
)

// Match records a single Pong match (tournament bracket entry or casual).
// SessionID links it to the live session while one exists; scores and
// winner are written once on finalization.
type Match struct {
	ID           string  `gorm:"primaryKey;type:uuid" json:"id"`
	TournamentID *string `gorm:"index;uniqueIndex:idx_tournament_round" json:"tournament_id,omitempty"` // nil = casual match
	Round        string  `gorm:"type:varchar(16);uniqueIndex:idx_tournament_round" json:"round,omitempty"`

	Player1ID int64   `gorm:"index;not null" json:"player1_id"`
	Player2ID int64   `gorm:"index;not null" json:"player2_id"`
	SessionID *string `gorm:"index" json:"session_id,omitempty"`

	Score1   int    `gorm:"default:0" json:"score1"`
	Score2   int    `gorm:"default:0" json:"score2"`
	WinnerID *int64 `json:"winner_id,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
