package services

import (
	"errors"

	"gorm.io/gorm"
)

// Application error kinds surfaced to handlers. Callers branch on
// these instead of inspecting driver error text.
var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrValidation     = errors.New("invalid input")
	ErrTournamentFull = errors.New("tournament full")
	ErrNoMatchToPlay  = errors.New("no match to play")
)

// translate maps gorm errors onto the application taxonomy. Requires
// gorm.Config{TranslateError: true} so unique violations arrive as
// gorm.ErrDuplicatedKey across drivers.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	default:
		return err
	}
}
