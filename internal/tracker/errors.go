package tracker

import (
	"errors"

	"github.com/flybeeper/track-recorder/internal/models"
)

var (
	// ErrInvalidTransition операция недопустима в текущем состоянии сессии
	ErrInvalidTransition = errors.New("invalid session state transition")

	// ErrEmptyName имя трека или POI пустое после обрезки пробелов
	ErrEmptyName = models.ErrEmptyName

	// ErrNoSession запись трека еще не начиналась
	ErrNoSession = errors.New("no track session")
)
