package postgres

import (
	"time"

	"gorm.io/gorm"

	"github.com/razi112/fynzatyp/internal/domain/entity"
	"github.com/razi112/fynzatyp/internal/domain/repository"
)

// SessionRepo реализует repository.SessionRepository
type SessionRepo struct {
	db *gorm.DB
}

// NewSessionRepo создает новый репозиторий одиночных сессий
func NewSessionRepo(db *gorm.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Save сохраняет результат завершенной одиночной сессии.
// Проваленные сессии сюда не попадают: это решает сервисный слой.
func (r *SessionRepo) Save(session *entity.TypingSession) error {
	return r.db.Create(session).Error
}

// ListByUser возвращает сессии пользователя, свежие первыми.
// since отсекает историю для расчета динамики за период.
func (r *SessionRepo) ListByUser(userID string, since *time.Time) ([]entity.TypingSession, error) {
	query := r.db.Where("user_id = ?", userID)
	if since != nil {
		query = query.Where("completed_at >= ?", *since)
	}
	var sessions []entity.TypingSession
	err := query.Order("completed_at DESC").Find(&sessions).Error
	return sessions, err
}

// TopByWPM возвращает лучшие сессии для таблицы лидеров
func (r *SessionRepo) TopByWPM(filters repository.SessionFilters, limit int) ([]entity.TypingSession, error) {
	query := r.db.Model(&entity.TypingSession{})
	if filters.Topic != "" {
		query = query.Where("text_topic = ?", filters.Topic)
	}
	if filters.Since != nil {
		query = query.Where("completed_at >= ?", *filters.Since)
	}
	var sessions []entity.TypingSession
	err := query.Order("wpm DESC").Limit(limit).Find(&sessions).Error
	return sessions, err
}
