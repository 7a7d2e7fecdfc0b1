package repository

import (
	"time"

	"github.com/razi112/fynzatyp/internal/domain/entity"
)

// RaceRepository определяет методы для работы с гонками
type RaceRepository interface {
	Create(race *entity.Race) error
	GetByID(id string) (*entity.Race, error)
	// FindJoinableByCode ищет гонку в статусе waiting по коду приглашения.
	// Код сравнивается регистронезависимо.
	FindJoinableByCode(code string) (*entity.Race, error)
	// UpdateFields точечно обновляет переданные поля гонки без full Save.
	UpdateFields(raceID string, fields map[string]interface{}) error
	// StartRace атомарно переводит countdown → in_progress и ставит
	// started_at. Возвращает false, если гонка уже не в countdown.
	StartRace(raceID string, startedAt time.Time) (bool, error)
	// CompleteStalled атомарно переводит in_progress → completed.
	// Возвращает false, если гонка уже не in_progress (запись идемпотентна).
	CompleteStalled(raceID string) (bool, error)
	List(limit, offset int) ([]entity.Race, error)
}
