package racemanager

import (
	"context"
	"time"

	"github.com/razi112/fynzatyp/internal/domain/entity"
)

// Op описывает тип изменения во внешнем хранилище
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Имена таблиц в событиях ленты изменений
const (
	TableRaces        = "typing_races"
	TableParticipants = "race_participants"
)

// ChangeEvent - одно изменение строки гонки или участника. События
// доставляются каждому подписчику асинхронно, порядок доставки между
// клиентами не гарантируется, поэтому свертка в RaceState обязана быть
// идемпотентной и коммутативной.
type ChangeEvent struct {
	Op          Op                  `json:"op"`
	Table       string              `json:"table"`
	Race        *entity.Race        `json:"race,omitempty"`
	Participant *entity.Participant `json:"participant,omitempty"`
	Timestamp   time.Time           `json:"timestamp"`
}

// Store - внешний коллаборатор движка гонок: персистентность плюс
// рассылка изменений всем подписчикам гонки. Каждая запись порождает
// ChangeEvent в ленте соответствующей гонки.
type Store interface {
	CreateRace(race *entity.Race) error
	GetRace(id string) (*entity.Race, error)
	// FindJoinableByCode ищет гонку в статусе waiting по коду приглашения
	// (регистронезависимо)
	FindJoinableByCode(code string) (*entity.Race, error)
	UpdateRace(raceID string, fields map[string]interface{}) error
	// StartRace атомарно переводит countdown -> in_progress и ставит
	// started_at. Возвращает false, если гонка уже не в countdown: переход
	// пишут и хост, и страховочные таймеры остальных участников.
	StartRace(raceID string, startedAt time.Time) (bool, error)
	// CompleteRace атомарно переводит in_progress -> completed.
	// Возвращает false, если гонка уже не in_progress: запись идемпотентна,
	// совершить ее может любой клиент, чья локальная картина показывает
	// финиш всех участников.
	CompleteRace(raceID string) (bool, error)

	CreateParticipant(p *entity.Participant) error
	ListParticipants(raceID string) ([]entity.Participant, error)
	UpdateParticipant(raceID, userID string, fields map[string]interface{}) error
	DeleteParticipant(raceID, userID string) error

	// Subscribe возвращает ленту изменений гонки. Канал закрывается при
	// отмене контекста.
	Subscribe(ctx context.Context, raceID string) (<-chan ChangeEvent, error)
}
