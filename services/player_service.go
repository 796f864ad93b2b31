package services

import (
	"pong-platform/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlayerService is the persistence gateway for the player read-model.
// Writes come exclusively from the user event consumer; everything
// else only reads.
type PlayerService struct {
	DB *gorm.DB
}

func NewPlayerService(db *gorm.DB) *PlayerService {
	return &PlayerService{DB: db}
}

// Get is a point read by id.
func (s *PlayerService) Get(id int64) (*models.Player, error) {
	var p models.Player
	if err := s.DB.First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// Upsert inserts or overwrites a player row. Last write wins: a stale
// redelivered event may overwrite a newer row, accepted because the
// read-model is display-only.
func (s *PlayerService) Upsert(p models.Player) error {
	return s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&p).Error
}

// Delete removes a player row. Deleting an absent row is not an error.
func (s *PlayerService) Delete(id int64) error {
	return s.DB.Delete(&models.Player{}, "id = ?", id).Error
}
