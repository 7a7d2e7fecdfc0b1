package entity

import (
	"time"
)

// TypingSession представляет сохраненный результат одиночной тренировки.
// Записывается только успешно завершенная сессия: провал по порогу точности
// не сохраняется.
type TypingSession struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	UserID          string    `gorm:"size:36;not null;index" json:"user_id"`
	WPM             int       `gorm:"column:wpm;not null;default:0" json:"wpm"`
	Accuracy        int       `gorm:"not null;default:0" json:"accuracy"`
	DurationSeconds int       `gorm:"not null;default:0" json:"duration_seconds"`
	TextLength      int       `gorm:"not null;default:0" json:"text_length"`
	TextTopic       string    `gorm:"size:30;not null;default:''" json:"text_topic"`
	Difficulty      string    `gorm:"size:20;not null;default:''" json:"difficulty"`
	CorrectChars    int       `gorm:"not null;default:0" json:"correct_chars"`
	IncorrectChars  int       `gorm:"not null;default:0" json:"incorrect_chars"`
	TotalChars      int       `gorm:"not null;default:0" json:"total_chars"`
	CompletedAt     time.Time `gorm:"not null;index" json:"completed_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (TypingSession) TableName() string {
	return "typing_sessions"
}
