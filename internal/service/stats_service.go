package service

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/xuri/excelize/v2"

	"github.com/razi112/fynzatyp/internal/domain/entity"
	"github.com/razi112/fynzatyp/internal/domain/repository"
	apperrors "github.com/razi112/fynzatyp/internal/pkg/errors"
)

const (
	statsOverviewCacheTTL  = time.Minute
	leaderboardCacheTTL    = 30 * time.Second
	defaultLeaderboardSize = 10
)

// Периоды таблицы лидеров
const (
	PeriodAll   = "all"
	PeriodToday = "today"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

// ErrUnknownPeriod возвращается при неизвестном периоде таблицы лидеров
var ErrUnknownPeriod = errors.New("unknown leaderboard period")

// StatsOverview - сводка статистики пользователя
type StatsOverview struct {
	TotalSessions  int     `json:"total_sessions"`
	AverageWPM     int     `json:"average_wpm"`
	BestWPM        int     `json:"best_wpm"`
	AvgAccuracy    int     `json:"avg_accuracy"`
	TotalChars     int     `json:"total_chars"`
	ImprovementWPM int     `json:"improvement_wpm"`
	HoursPracticed float64 `json:"hours_practiced"`
}

// LeaderboardEntry - строка таблицы лидеров
type LeaderboardEntry struct {
	Rank        int       `json:"rank"`
	UserID      string    `json:"user_id"`
	WPM         int       `json:"wpm"`
	Accuracy    int       `json:"accuracy"`
	Topic       string    `json:"topic"`
	Difficulty  string    `json:"difficulty"`
	CompletedAt time.Time `json:"completed_at"`
}

// StatsService считает статистику по сохраненным сессиям. Сводки кешируются
// с коротким TTL: история меняется только при завершении сессии.
type StatsService struct {
	sessionRepo repository.SessionRepository
	cacheRepo   repository.CacheRepository
	clock       clockwork.Clock
}

// NewStatsService создает сервис статистики
func NewStatsService(sessionRepo repository.SessionRepository, cacheRepo repository.CacheRepository, clock clockwork.Clock) *StatsService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &StatsService{
		sessionRepo: sessionRepo,
		cacheRepo:   cacheRepo,
		clock:       clock,
	}
}

// Overview возвращает сводку статистики пользователя
func (s *StatsService) Overview(userID string) (*StatsOverview, error) {
	cacheKey := "stats:overview:" + userID
	if s.cacheRepo != nil {
		var cached StatsOverview
		if err := s.cacheRepo.GetJSON(cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	sessions, err := s.sessionRepo.ListByUser(userID, nil)
	if err != nil {
		return nil, err
	}

	overview := buildOverview(sessions)

	if s.cacheRepo != nil {
		if err := s.cacheRepo.SetJSON(cacheKey, overview, statsOverviewCacheTTL); err != nil {
			log.Printf("[StatsService] Ошибка кеширования сводки пользователя %s: %v", userID, err)
		}
	}
	return overview, nil
}

// buildOverview сворачивает историю сессий в сводку. Динамика WPM -
// разница средних между свежей и ранней половинами истории
// (сессии приходят свежими вперед).
func buildOverview(sessions []entity.TypingSession) *StatsOverview {
	overview := &StatsOverview{TotalSessions: len(sessions)}
	if len(sessions) == 0 {
		return overview
	}

	totalWPM, totalAccuracy, totalSeconds := 0, 0, 0
	for _, session := range sessions {
		totalWPM += session.WPM
		totalAccuracy += session.Accuracy
		totalSeconds += session.DurationSeconds
		overview.TotalChars += session.TotalChars
		if session.WPM > overview.BestWPM {
			overview.BestWPM = session.WPM
		}
	}
	overview.AverageWPM = int(math.Round(float64(totalWPM) / float64(len(sessions))))
	overview.AvgAccuracy = int(math.Round(float64(totalAccuracy) / float64(len(sessions))))
	overview.HoursPracticed = math.Round(float64(totalSeconds)/36) / 100

	// Динамика осмысленна минимум на четырех сессиях, иначе остается 0
	if len(sessions) >= 4 {
		half := len(sessions) / 2
		overview.ImprovementWPM = avgWPM(sessions[:half]) - avgWPM(sessions[len(sessions)-half:])
	}
	return overview
}

func avgWPM(sessions []entity.TypingSession) int {
	if len(sessions) == 0 {
		return 0
	}
	total := 0
	for _, session := range sessions {
		total += session.WPM
	}
	return int(math.Round(float64(total) / float64(len(sessions))))
}

// periodStart вычисляет нижнюю границу периода по часам сервиса
func (s *StatsService) periodStart(period string) (*time.Time, error) {
	now := s.clock.Now()
	switch period {
	case "", PeriodAll:
		return nil, nil
	case PeriodToday:
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return &start, nil
	case PeriodWeek:
		start := now.AddDate(0, 0, -7)
		return &start, nil
	case PeriodMonth:
		start := now.AddDate(0, -1, 0)
		return &start, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
	}
}

// Leaderboard возвращает лучшие результаты по WPM, опционально по теме
// и за период (all/today/week/month)
func (s *StatsService) Leaderboard(topic, period string, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultLeaderboardSize
	}
	since, err := s.periodStart(period)
	if err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("stats:leaderboard:%s:%s:%d", topic, period, limit)
	if s.cacheRepo != nil {
		var cached []LeaderboardEntry
		if err := s.cacheRepo.GetJSON(cacheKey, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[StatsService] Ошибка чтения кеша таблицы лидеров: %v", err)
		}
	}

	sessions, err := s.sessionRepo.TopByWPM(repository.SessionFilters{Topic: topic, Since: since}, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(sessions))
	for i, session := range sessions {
		entries = append(entries, LeaderboardEntry{
			Rank:        i + 1,
			UserID:      session.UserID,
			WPM:         session.WPM,
			Accuracy:    session.Accuracy,
			Topic:       session.TextTopic,
			Difficulty:  session.Difficulty,
			CompletedAt: session.CompletedAt,
		})
	}

	if s.cacheRepo != nil {
		if err := s.cacheRepo.SetJSON(cacheKey, entries, leaderboardCacheTTL); err != nil {
			log.Printf("[StatsService] Ошибка кеширования таблицы лидеров: %v", err)
		}
	}
	return entries, nil
}

// ExportHistoryXLSX выгружает историю сессий пользователя в xlsx
func (s *StatsService) ExportHistoryXLSX(userID string) (*bytes.Buffer, error) {
	sessions, err := s.sessionRepo.ListByUser(userID, nil)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sessions"
	f.SetSheetName(f.GetSheetName(0), sheet)

	headers := []string{"Completed At", "Topic", "Difficulty", "WPM", "Accuracy %", "Duration (s)", "Text Length", "Correct", "Incorrect"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}

	for row, session := range sessions {
		values := []interface{}{
			session.CompletedAt.Format(time.RFC3339),
			session.TextTopic,
			session.Difficulty,
			session.WPM,
			session.Accuracy,
			session.DurationSeconds,
			session.TextLength,
			session.CorrectChars,
			session.IncorrectChars,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	return f.WriteToBuffer()
}
