package repository

import (
	"time"

	"github.com/razi112/fynzatyp/internal/domain/entity"
)

// SessionFilters определяет фильтры для выборки сохраненных тренировок
type SessionFilters struct {
	Topic string     // Фильтр по теме текста ("" — все темы)
	Since *time.Time // Нижняя граница по completed_at
}

// SessionRepository определяет методы для работы с результатами тренировок
type SessionRepository interface {
	Save(session *entity.TypingSession) error
	// ListByUser возвращает сессии пользователя начиная с since,
	// отсортированные по completed_at по возрастанию.
	ListByUser(userID string, since *time.Time) ([]entity.TypingSession, error)
	// TopByWPM возвращает лучшие сессии по WPM с учетом фильтров (лидерборд).
	TopByWPM(filters SessionFilters, limit int) ([]entity.TypingSession, error)
}
