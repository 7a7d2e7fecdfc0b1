package repository

import (
	"github.com/razi112/fynzatyp/internal/domain/entity"
)

// ParticipantRepository определяет методы для работы с участниками гонок
type ParticipantRepository interface {
	Create(participant *entity.Participant) error
	GetByRaceAndUser(raceID, userID string) (*entity.Participant, error)
	ListByRace(raceID string) ([]entity.Participant, error)
	CountByRace(raceID string) (int64, error)
	// UpdateFields точечно обновляет переданные поля участника.
	// Используется на горячем пути (каждое нажатие клавиши).
	UpdateFields(raceID, userID string, fields map[string]interface{}) error
	Delete(raceID, userID string) error
}
