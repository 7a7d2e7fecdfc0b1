package service

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/razi112/fynzatyp/internal/domain/entity"
	"github.com/razi112/fynzatyp/internal/domain/repository"
	apperrors "github.com/razi112/fynzatyp/internal/pkg/errors"
	"github.com/razi112/fynzatyp/internal/typing"
)

// MockCacheRepository реализует repository.CacheRepository
type MockCacheRepository struct {
	mock.Mock
}

func (m *MockCacheRepository) Set(key string, value interface{}, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepository) Get(key string) (string, error) {
	args := m.Called(key)
	return args.String(0), args.Error(1)
}

func (m *MockCacheRepository) Delete(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

func (m *MockCacheRepository) SetJSON(key string, value interface{}, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepository) GetJSON(key string, dest interface{}) error {
	args := m.Called(key, dest)
	return args.Error(0)
}

func (m *MockCacheRepository) Exists(key string) (bool, error) {
	args := m.Called(key)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheRepository) SetNX(key string, value interface{}, expiration time.Duration) (bool, error) {
	args := m.Called(key, value, expiration)
	return args.Bool(0), args.Error(1)
}

func session(wpm, accuracy, seconds int, completedAt time.Time) entity.TypingSession {
	return entity.TypingSession{
		UserID:          "user-1",
		WPM:             wpm,
		Accuracy:        accuracy,
		DurationSeconds: seconds,
		TextTopic:       typing.TopicNature,
		Difficulty:      "intermediate",
		TotalChars:      wpm * 5,
		CompletedAt:     completedAt,
	}
}

func TestStatsService_Overview(t *testing.T) {
	repo := new(MockSessionRepository)
	svc := NewStatsService(repo, nil, clockwork.NewFakeClock())

	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	// Свежие сессии первыми: динамика = среднее свежей половины минус
	// среднее ранней
	history := []entity.TypingSession{
		session(80, 97, 60, now),
		session(70, 95, 60, now.Add(-time.Hour)),
		session(40, 90, 120, now.Add(-2*time.Hour)),
		session(30, 85, 120, now.Add(-3*time.Hour)),
	}
	repo.On("ListByUser", "user-1", (*time.Time)(nil)).Return(history, nil).Once()

	overview, err := svc.Overview("user-1")
	require.NoError(t, err)

	assert.Equal(t, 4, overview.TotalSessions)
	assert.Equal(t, 55, overview.AverageWPM)
	assert.Equal(t, 80, overview.BestWPM)
	assert.Equal(t, 92, overview.AvgAccuracy)
	assert.Equal(t, 40, overview.ImprovementWPM)
	assert.Equal(t, 0.1, overview.HoursPracticed)
}

func TestStatsService_OverviewShortHistoryNoImprovement(t *testing.T) {
	repo := new(MockSessionRepository)
	svc := NewStatsService(repo, nil, clockwork.NewFakeClock())

	// Меньше четырех сессий: динамика не считается
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	history := []entity.TypingSession{
		session(90, 97, 60, now),
		session(60, 95, 60, now.Add(-time.Hour)),
		session(30, 90, 60, now.Add(-2*time.Hour)),
	}
	repo.On("ListByUser", "user-1", (*time.Time)(nil)).Return(history, nil).Once()

	overview, err := svc.Overview("user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, overview.TotalSessions)
	assert.Equal(t, 60, overview.AverageWPM)
	assert.Equal(t, 0, overview.ImprovementWPM)
}

func TestStatsService_OverviewEmptyHistory(t *testing.T) {
	repo := new(MockSessionRepository)
	svc := NewStatsService(repo, nil, clockwork.NewFakeClock())

	repo.On("ListByUser", "user-1", (*time.Time)(nil)).Return([]entity.TypingSession{}, nil).Once()

	overview, err := svc.Overview("user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, overview.TotalSessions)
	assert.Equal(t, 0, overview.AverageWPM)
	assert.Equal(t, 0, overview.ImprovementWPM)
}

func TestStatsService_OverviewUsesCache(t *testing.T) {
	repo := new(MockSessionRepository)
	cache := new(MockCacheRepository)
	svc := NewStatsService(repo, cache, clockwork.NewFakeClock())

	// Промах кеша: сводка считается и кладется в кеш
	cache.On("GetJSON", "stats:overview:user-1", mock.Anything).Return(apperrors.ErrNotFound).Once()
	repo.On("ListByUser", "user-1", (*time.Time)(nil)).Return([]entity.TypingSession{
		session(60, 95, 60, time.Now()),
	}, nil).Once()
	cache.On("SetJSON", "stats:overview:user-1", mock.Anything, statsOverviewCacheTTL).Return(nil).Once()

	_, err := svc.Overview("user-1")
	require.NoError(t, err)

	cache.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestStatsService_Leaderboard(t *testing.T) {
	repo := new(MockSessionRepository)
	svc := NewStatsService(repo, nil, clockwork.NewFakeClock())

	now := time.Now()
	top := []entity.TypingSession{
		{UserID: "fast", WPM: 120, Accuracy: 98, TextTopic: typing.TopicCode, CompletedAt: now},
		{UserID: "mid", WPM: 90, Accuracy: 96, TextTopic: typing.TopicCode, CompletedAt: now},
	}
	repo.On("TopByWPM", repository.SessionFilters{Topic: typing.TopicCode}, 10).Return(top, nil).Once()

	entries, err := svc.Leaderboard(typing.TopicCode, PeriodAll, 0)
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "fast", entries[0].UserID)
	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, 90, entries[1].WPM)
}

func TestStatsService_LeaderboardPeriodFilter(t *testing.T) {
	repo := new(MockSessionRepository)
	now := time.Date(2026, 5, 8, 12, 0, 0, 0, time.UTC)
	svc := NewStatsService(repo, nil, clockwork.NewFakeClockAt(now))

	// Нижняя граница периода считается по часам сервиса
	weekAgo := now.AddDate(0, 0, -7)
	repo.On("TopByWPM", repository.SessionFilters{Since: &weekAgo}, 10).
		Return([]entity.TypingSession{}, nil).Once()

	entries, err := svc.Leaderboard("", PeriodWeek, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
	repo.AssertExpectations(t)

	_, err = svc.Leaderboard("", "decade", 0)
	assert.ErrorIs(t, err, ErrUnknownPeriod)
}

func TestStatsService_ExportHistoryXLSX(t *testing.T) {
	repo := new(MockSessionRepository)
	svc := NewStatsService(repo, nil, clockwork.NewFakeClock())

	repo.On("ListByUser", "user-1", (*time.Time)(nil)).Return([]entity.TypingSession{
		session(75, 94, 90, time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)),
	}, nil).Once()

	buf, err := svc.ExportHistoryXLSX("user-1")
	require.NoError(t, err)
	assert.Greater(t, buf.Len(), 0)
}
