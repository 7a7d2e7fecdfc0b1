package postgres

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/razi112/fynzatyp/internal/domain/entity"
	"github.com/razi112/fynzatyp/internal/domain/repository"
	apperrors "github.com/razi112/fynzatyp/internal/pkg/errors"
)

// ParticipantRepo реализует repository.ParticipantRepository
type ParticipantRepo struct {
	db *gorm.DB
}

// NewParticipantRepo создает новый репозиторий участников гонок
func NewParticipantRepo(db *gorm.DB) *ParticipantRepo {
	return &ParticipantRepo{db: db}
}

// Create добавляет участника в гонку. Unique index idx_race_user
// гарантирует не более одной записи на пару (race_id, user_id).
func (r *ParticipantRepo) Create(participant *entity.Participant) error {
	if err := r.db.Create(participant).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: race=%s user=%s",
				repository.ErrDuplicateParticipant, participant.RaceID, participant.UserID)
		}
		return err
	}
	return nil
}

// GetByRaceAndUser возвращает участника гонки по паре (race_id, user_id)
func (r *ParticipantRepo) GetByRaceAndUser(raceID, userID string) (*entity.Participant, error) {
	var participant entity.Participant
	err := r.db.
		Where("race_id = ? AND user_id = ?", raceID, userID).
		First(&participant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &participant, nil
}

// ListByRace возвращает всех участников гонки в порядке присоединения
func (r *ParticipantRepo) ListByRace(raceID string) ([]entity.Participant, error) {
	var participants []entity.Participant
	err := r.db.
		Where("race_id = ?", raceID).
		Order("joined_at").
		Find(&participants).Error
	return participants, err
}

// CountByRace возвращает число участников гонки
func (r *ParticipantRepo) CountByRace(raceID string) (int64, error) {
	var count int64
	err := r.db.Model(&entity.Participant{}).
		Where("race_id = ?", raceID).
		Count(&count).Error
	return count, err
}

// UpdateFields точечно обновляет переданные поля участника.
// Горячий путь: вызывается на каждое нажатие клавиши.
func (r *ParticipantRepo) UpdateFields(raceID, userID string, fields map[string]interface{}) error {
	result := r.db.Model(&entity.Participant{}).
		Where("race_id = ? AND user_id = ?", raceID, userID).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Delete удаляет участника из гонки
func (r *ParticipantRepo) Delete(raceID, userID string) error {
	result := r.db.
		Where("race_id = ? AND user_id = ?", raceID, userID).
		Delete(&entity.Participant{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
