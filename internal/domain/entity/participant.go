package entity

import (
	"time"
)

// Participant представляет участника гонки. Пара (race_id, user_id)
// уникальна: пользователь может присоединиться к гонке только один раз.
type Participant struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	RaceID      string     `gorm:"size:36;not null;uniqueIndex:idx_race_user" json:"race_id"`
	UserID      string     `gorm:"size:36;not null;uniqueIndex:idx_race_user" json:"user_id"`
	DisplayName string     `gorm:"size:50;not null" json:"display_name"`
	Progress    int        `gorm:"not null;default:0" json:"progress"`
	WPM         int        `gorm:"column:wpm;not null;default:0" json:"wpm"`
	Accuracy    int        `gorm:"not null;default:100" json:"accuracy"`
	FinishedAt  *time.Time `json:"finished_at"`
	Position    *int       `json:"position"`
	JoinedAt    time.Time  `gorm:"not null" json:"joined_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Participant) TableName() string {
	return "race_participants"
}

// HasFinished проверяет, финишировал ли участник.
// Инвариант: position установлен тогда и только тогда, когда установлен finished_at.
func (p *Participant) HasFinished() bool {
	return p.FinishedAt != nil
}
