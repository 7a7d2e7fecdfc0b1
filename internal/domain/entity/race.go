package entity

import (
	"strings"
	"time"
)

// Константы статусов гонки. Порядок фиксированный, переходы только вперед:
// waiting → countdown → in_progress → completed.
const (
	RaceStatusWaiting    = "waiting"
	RaceStatusCountdown  = "countdown"
	RaceStatusInProgress = "in_progress"
	RaceStatusCompleted  = "completed"
)

// Race представляет мультиплеерную гонку по набору текста
type Race struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	HostUserID string     `gorm:"size:36;not null;index" json:"host_user_id"`
	JoinCode   string     `gorm:"size:12;not null;index" json:"join_code"`
	Status     string     `gorm:"size:20;not null;default:'waiting';index" json:"status"`
	RaceText   string     `gorm:"type:text;not null" json:"race_text"`
	TextTopic  string     `gorm:"size:30;not null;default:'motivation'" json:"text_topic"`
	Difficulty string     `gorm:"size:20;not null;default:'intermediate'" json:"difficulty"`
	MaxPlayers int        `gorm:"not null;default:4" json:"max_players"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Race) TableName() string {
	return "typing_races"
}

// IsWaiting проверяет, ожидает ли гонка участников
func (r *Race) IsWaiting() bool {
	return r.Status == RaceStatusWaiting
}

// IsCountdown проверяет, идет ли обратный отсчет перед стартом
func (r *Race) IsCountdown() bool {
	return r.Status == RaceStatusCountdown
}

// IsActive проверяет, идет ли гонка
func (r *Race) IsActive() bool {
	return r.Status == RaceStatusInProgress
}

// IsCompleted проверяет, завершена ли гонка. Завершенная гонка выведена из
// оборота: новые записи по ней не принимаются.
func (r *Race) IsCompleted() bool {
	return r.Status == RaceStatusCompleted
}

// StatusRank возвращает порядковый номер статуса в жизненном цикле гонки
// (-1 для неизвестного статуса). Используется для проверки монотонности.
func StatusRank(status string) int {
	switch status {
	case RaceStatusWaiting:
		return 0
	case RaceStatusCountdown:
		return 1
	case RaceStatusInProgress:
		return 2
	case RaceStatusCompleted:
		return 3
	default:
		return -1
	}
}

// NormalizeJoinCode приводит код приглашения к канонической форме.
// Сравнение кодов регистронезависимое.
func NormalizeJoinCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
