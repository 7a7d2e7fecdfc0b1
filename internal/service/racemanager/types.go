package racemanager

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Config содержит настройки движка гонок
type Config struct {
	// CountdownSeconds - длительность обратного отсчета перед стартом
	CountdownSeconds int
	// MinPlayers - минимальное число участников для старта
	MinPlayers int
	// DefaultMaxPlayers - лимит участников, если хост не задал свой
	DefaultMaxPlayers int
	// JoinCodeLength - длина кода приглашения
	JoinCodeLength int
	// JoinCodeMaxRetries - число попыток при коллизии кода
	JoinCodeMaxRetries int
	// MaxRaceDuration - сторожевой лимит: гонка в in_progress дольше
	// этого времени принудительно завершается
	MaxRaceDuration time.Duration
	// UpdateBufferSize - размер буфера канала снапшотов для клиента
	UpdateBufferSize int
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		CountdownSeconds:   3,
		MinPlayers:         2,
		DefaultMaxPlayers:  4,
		JoinCodeLength:     6,
		JoinCodeMaxRetries: 5,
		MaxRaceDuration:    10 * time.Minute,
		UpdateBufferSize:   16,
	}
}

// Dependencies группирует зависимости координатора для конструктора
type Dependencies struct {
	Store  Store
	Clock  clockwork.Clock
	Config Config
}
