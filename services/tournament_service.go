package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"pong-platform/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TournamentService drives the 4-player single-elimination bracket:
// PENDING while slots fill, STARTED once the semifinals are generated,
// FINISHED when both the final and the little final have a winner.
// Every multi-statement invariant (slot capacity, generate-once) runs
// inside one transaction; the unique indexes are the last-resort guard
// against concurrent duplicates.
type TournamentService struct {
	DB *gorm.DB
}

func NewTournamentService(db *gorm.DB) *TournamentService {
	return &TournamentService{DB: db}
}

// Create opens a new tournament and puts the creator in slot 1.
// The creator must exist in the player read-model.
func (s *TournamentService) Create(creatorID int64) (*models.Tournament, error) {
	if err := s.requirePlayer(creatorID); err != nil {
		return nil, err
	}

	t := &models.Tournament{
		ID:        uuid.NewString(),
		CreatorID: creatorID,
		Status:    models.TournamentPending,
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(t).Error; err != nil {
			return err
		}
		return tx.Create(&models.TournamentPlayer{
			TournamentID: t.ID,
			PlayerID:     creatorID,
			Slot:         1,
		}).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return t, nil
}

// Join assigns the caller the next free slot. Joining a tournament the
// caller is already in is a no-op, not an error. The capacity check is
// re-validated inside the transaction; when a concurrent joiner steals
// the computed slot between the count and the insert, the unique
// (tournament, slot) index rejects the second insert and the attempt
// is retried once against the committed state, so ErrTournamentFull is
// only reported at true capacity.
//
// The 4th join flips the tournament to STARTED and generates both
// semifinal matches (slot 1 vs 2, slot 3 vs 4), each with a freshly
// minted session id, in the same transaction.
func (s *TournamentService) Join(playerID int64, tournamentID string) (started bool, err error) {
	if err := s.requirePlayer(playerID); err != nil {
		return false, err
	}

	join := func(tx *gorm.DB) error {
		var t models.Tournament
		if err := tx.First(&t, "id = ?", tournamentID).Error; err != nil {
			return translate(err)
		}

		var existing models.TournamentPlayer
		err := tx.First(&existing, "tournament_id = ? AND player_id = ?", tournamentID, playerID).Error
		if err == nil {
			return nil // already a member, idempotent
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if t.Status != models.TournamentPending {
			return ErrTournamentFull
		}

		var occupied int64
		if err := tx.Model(&models.TournamentPlayer{}).
			Where("tournament_id = ?", tournamentID).
			Count(&occupied).Error; err != nil {
			return err
		}
		if occupied >= models.TournamentSize {
			return ErrTournamentFull
		}

		slot := int(occupied) + 1
		if err := tx.Create(&models.TournamentPlayer{
			TournamentID: tournamentID,
			PlayerID:     playerID,
			Slot:         slot,
		}).Error; err != nil {
			return err
		}

		if slot < models.TournamentSize {
			return nil
		}

		// Fourth distinct player: start and seed the semifinals.
		if err := tx.Model(&t).Update("status", models.TournamentStarted).Error; err != nil {
			return err
		}
		started = true
		return s.generateSemifinals(tx, tournamentID)
	}

	for attempt := 0; attempt < 2; attempt++ {
		started = false
		if err = s.DB.Transaction(join); err == nil {
			return started, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
	}
	// Two consecutive slot collisions surface as a retryable conflict,
	// never as a spurious "full".
	return false, translate(err)
}

func (s *TournamentService) generateSemifinals(tx *gorm.DB, tournamentID string) error {
	var slots []models.TournamentPlayer
	if err := tx.Where("tournament_id = ?", tournamentID).
		Order("slot ASC").Find(&slots).Error; err != nil {
		return err
	}
	if len(slots) != models.TournamentSize {
		return fmt.Errorf("expected %d slots, found %d", models.TournamentSize, len(slots))
	}

	pairings := []struct {
		round  string
		p1, p2 int64
	}{
		{models.RoundSemi1, slots[0].PlayerID, slots[1].PlayerID},
		{models.RoundSemi2, slots[2].PlayerID, slots[3].PlayerID},
	}
	for _, p := range pairings {
		if err := s.createRoundMatch(tx, tournamentID, p.round, p.p1, p.p2); err != nil {
			return err
		}
	}
	return nil
}

func (s *TournamentService) createRoundMatch(tx *gorm.DB, tournamentID, round string, p1, p2 int64) error {
	sessionID := uuid.NewString()
	return tx.Create(&models.Match{
		ID:           uuid.NewString(),
		TournamentID: &tournamentID,
		Round:        round,
		Player1ID:    p1,
		Player2ID:    p2,
		SessionID:    &sessionID,
	}).Error
}

// RecordResult finalizes the match linked to sessionID with the given
// per-seat scores and advances the bracket if the match belonged to
// one. leftID/rightID carry which player held which seat; seat order
// is independent of the stored player order.
//
// Both semifinal completion handlers may run near-simultaneously; the
// finished-semifinal count is read inside the same transaction that
// would generate the final round, and a lost race surfaces as a
// duplicate-key failure on the (tournament, round) index, which is
// logged and swallowed — the first generation stays intact.
func (s *TournamentService) RecordResult(sessionID string, leftID, rightID int64, scoreLeft, scoreRight int) error {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var m models.Match
		if err := tx.First(&m, "session_id = ?", sessionID).Error; err != nil {
			return translate(err)
		}
		if m.WinnerID != nil {
			return nil // already settled
		}

		score1, score2 := scoreLeft, scoreRight
		if m.Player1ID == rightID && m.Player2ID == leftID {
			score1, score2 = scoreRight, scoreLeft
		}
		winner := m.Player1ID
		if score2 > score1 {
			winner = m.Player2ID
		}
		m.Score1, m.Score2 = score1, score2
		m.WinnerID = &winner
		if err := tx.Save(&m).Error; err != nil {
			return err
		}

		if m.TournamentID == nil {
			return nil
		}
		switch m.Round {
		case models.RoundSemi1, models.RoundSemi2:
			return s.advanceAfterSemifinal(tx, *m.TournamentID)
		case models.RoundFinal, models.RoundLittleFinal:
			return s.finishIfComplete(tx, *m.TournamentID)
		}
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		log.Printf("bracket for session %s already generated, keeping first generation", sessionID)
		return nil
	}
	return err
}

// advanceAfterSemifinal synthesizes the FINAL (winner vs winner) and
// LITTLE_FINAL (loser vs loser) once both semifinals have a winner.
func (s *TournamentService) advanceAfterSemifinal(tx *gorm.DB, tournamentID string) error {
	var semis []models.Match
	if err := tx.Where("tournament_id = ? AND round IN ?",
		tournamentID, []string{models.RoundSemi1, models.RoundSemi2}).
		Order("round ASC").Find(&semis).Error; err != nil {
		return err
	}
	if len(semis) != 2 || semis[0].WinnerID == nil || semis[1].WinnerID == nil {
		return nil // other semifinal still running
	}

	w1, l1 := outcome(semis[0])
	w2, l2 := outcome(semis[1])
	if err := s.createRoundMatch(tx, tournamentID, models.RoundFinal, w1, w2); err != nil {
		return err
	}
	return s.createRoundMatch(tx, tournamentID, models.RoundLittleFinal, l1, l2)
}

// finishIfComplete marks the tournament FINISHED and writes final
// positions 1-4 once the final and the little final are both decided.
func (s *TournamentService) finishIfComplete(tx *gorm.DB, tournamentID string) error {
	var decisive []models.Match
	if err := tx.Where("tournament_id = ? AND round IN ? AND winner_id IS NOT NULL",
		tournamentID, []string{models.RoundFinal, models.RoundLittleFinal}).
		Find(&decisive).Error; err != nil {
		return err
	}
	if len(decisive) != 2 {
		return nil
	}

	positions := make(map[int64]int, 4)
	for _, m := range decisive {
		w, l := outcome(m)
		if m.Round == models.RoundFinal {
			positions[w], positions[l] = 1, 2
		} else {
			positions[w], positions[l] = 3, 4
		}
	}
	for playerID, pos := range positions {
		if err := tx.Model(&models.TournamentPlayer{}).
			Where("tournament_id = ? AND player_id = ?", tournamentID, playerID).
			Update("final_position", pos).Error; err != nil {
			return err
		}
	}
	return tx.Model(&models.Tournament{}).
		Where("id = ?", tournamentID).
		Update("status", models.TournamentFinished).Error
}

// outcome returns a settled match's winner and loser.
func outcome(m models.Match) (winner, loser int64) {
	winner = *m.WinnerID
	loser = m.Player1ID
	if loser == winner {
		loser = m.Player2ID
	}
	return winner, loser
}

// GetMatchToPlay returns the one unresolved, session-initialized match
// in the tournament where the caller is a named participant. The
// "nothing to play" case is an expected condition (ErrNoMatchToPlay),
// not a fault.
func (s *TournamentService) GetMatchToPlay(tournamentID string, playerID int64) (*models.Match, error) {
	var m models.Match
	err := s.DB.Where(
		"tournament_id = ? AND winner_id IS NULL AND session_id IS NOT NULL AND (player1_id = ? OR player2_id = ?)",
		tournamentID, playerID, playerID).
		Order("created_at ASC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoMatchToPlay
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListOpen returns tournaments still accepting players or in progress.
func (s *TournamentService) ListOpen() ([]models.Tournament, error) {
	var tournaments []models.Tournament
	err := s.DB.
		Preload("Players", func(db *gorm.DB) *gorm.DB {
			return db.Order("slot ASC")
		}).
		Where("status IN ?", []string{models.TournamentPending, models.TournamentStarted}).
		Order("created_at DESC").
		Find(&tournaments).Error
	return tournaments, err
}

// RosterEntry is one slot of the tournament roster with the player's
// read-model profile joined in.
type RosterEntry struct {
	Slot          int    `json:"slot"`
	PlayerID      int64  `json:"player_id"`
	Username      string `json:"username"`
	Avatar        string `json:"avatar,omitempty"`
	FinalPosition *int   `json:"final_position,omitempty"`
}

// Show returns a tournament with its slot roster.
func (s *TournamentService) Show(tournamentID string) (*models.Tournament, []RosterEntry, error) {
	var t models.Tournament
	if err := s.DB.
		Preload("Matches", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&t, "id = ?", tournamentID).Error; err != nil {
		return nil, nil, translate(err)
	}

	var roster []RosterEntry
	err := s.DB.Model(&models.TournamentPlayer{}).
		Select("tournament_players.slot, tournament_players.player_id, tournament_players.final_position, players.username, players.avatar").
		Joins("LEFT JOIN players ON players.id = tournament_players.player_id").
		Where("tournament_players.tournament_id = ?", tournamentID).
		Order("tournament_players.slot ASC").
		Scan(&roster).Error
	if err != nil {
		return nil, nil, err
	}
	return &t, roster, nil
}

// requirePlayer checks the caller against the player read-model. The
// upstream gateway already authenticated the id; this is the local
// existence check before a join mutates tournament state.
func (s *TournamentService) requirePlayer(playerID int64) error {
	if playerID <= 0 {
		return ErrValidation
	}
	var p models.Player
	if err := s.DB.First(&p, "id = ?", playerID).Error; err != nil {
		return translate(err)
	}
	return nil
}

// RecordCasual persists a finished ad hoc match when both players are
// known, so casual results show up in history alongside bracket games.
func (s *TournamentService) RecordCasual(sessionID string, leftID, rightID int64, scoreLeft, scoreRight int) error {
	winner := leftID
	if scoreRight > scoreLeft {
		winner = rightID
	}
	sid := sessionID
	return s.DB.Create(&models.Match{
		ID:        uuid.NewString(),
		Player1ID: leftID,
		Player2ID: rightID,
		SessionID: &sid,
		Score1:    scoreLeft,
		Score2:    scoreRight,
		WinnerID:  &winner,
		CreatedAt: time.Now(),
	}).Error
}
