package postgres

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/razi112/fynzatyp/internal/domain/entity"
	"github.com/razi112/fynzatyp/internal/domain/repository"
	apperrors "github.com/razi112/fynzatyp/internal/pkg/errors"
)

// RaceRepo реализует repository.RaceRepository
type RaceRepo struct {
	db *gorm.DB
}

// NewRaceRepo создает новый репозиторий гонок
func NewRaceRepo(db *gorm.DB) *RaceRepo {
	return &RaceRepo{db: db}
}

// Create создает новую гонку. Partial unique index
// idx_races_active_join_code гарантирует уникальность кода приглашения
// среди незавершенных гонок.
func (r *RaceRepo) Create(race *entity.Race) error {
	if err := r.db.Create(race).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", repository.ErrJoinCodeTaken, race.JoinCode)
		}
		return err
	}
	return nil
}

// GetByID возвращает гонку по ID
func (r *RaceRepo) GetByID(id string) (*entity.Race, error) {
	var race entity.Race
	err := r.db.First(&race, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &race, nil
}

// FindJoinableByCode ищет ожидающую гонку по коду приглашения.
// Код сравнивается регистронезависимо.
func (r *RaceRepo) FindJoinableByCode(code string) (*entity.Race, error) {
	var race entity.Race
	err := r.db.
		Where("status = ? AND UPPER(join_code) = ?", entity.RaceStatusWaiting, entity.NormalizeJoinCode(code)).
		First(&race).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &race, nil
}

// UpdateFields точечно обновляет переданные поля гонки без полного Save
func (r *RaceRepo) UpdateFields(raceID string, fields map[string]interface{}) error {
	result := r.db.Model(&entity.Race{}).
		Where("id = ?", raceID).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// StartRace атомарно переводит countdown -> in_progress и ставит
// started_at. RowsAffected == 0 означает, что переход уже записан другим
// клиентом: из хоста и страховочных таймеров участников выигрывает первый.
func (r *RaceRepo) StartRace(raceID string, startedAt time.Time) (bool, error) {
	result := r.db.Model(&entity.Race{}).
		Where("id = ? AND status = ?", raceID, entity.RaceStatusCountdown).
		Updates(map[string]interface{}{
			"status":     entity.RaceStatusInProgress,
			"started_at": startedAt,
			"updated_at": startedAt,
		})
	if result.Error != nil {
		return false, fmt.Errorf("start race %s failed: %w", raceID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// CompleteStalled атомарно переводит in_progress -> completed.
// RowsAffected == 0 означает, что гонка уже не in_progress: запись
// идемпотентна и безопасна при конкурентных вызовах с разных клиентов.
func (r *RaceRepo) CompleteStalled(raceID string) (bool, error) {
	now := time.Now()
	result := r.db.Model(&entity.Race{}).
		Where("id = ? AND status = ?", raceID, entity.RaceStatusInProgress).
		Updates(map[string]interface{}{
			"status":      entity.RaceStatusCompleted,
			"finished_at": now,
			"updated_at":  now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("complete race %s failed: %w", raceID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// List возвращает список гонок с пагинацией
func (r *RaceRepo) List(limit, offset int) ([]entity.Race, error) {
	var races []entity.Race
	err := r.db.Limit(limit).Offset(offset).Order("created_at DESC").Find(&races).Error
	return races, err
}

// isUniqueViolation проверяет Postgres unique violation (23505) для pgconn и lib/pq драйверов
func isUniqueViolation(err error) bool {
	// pgx/v5 driver (pgconn.PgError)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	// lib/pq driver
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	return false
}
