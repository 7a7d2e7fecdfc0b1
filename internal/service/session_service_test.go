package service

import (
	"strings"
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

// ============================================================================
// Моки для сервисов. MockSessionRepository используется и в stats_service_test.go
// ============================================================================

// MockSessionRepository реализует repository.SessionRepository
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Save(session *entity.TypingSession) error {
	args := m.Called(session)
	return args.Error(0)
}

func (m *MockSessionRepository) ListByUser(userID string, since *time.Time) ([]entity.TypingSession, error) {
	args := m.Called(userID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.TypingSession), args.Error(1)
}

func (m *MockSessionRepository) TopByWPM(filters repository.SessionFilters, limit int) ([]entity.TypingSession, error) {
	args := m.Called(filters, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.TypingSession), args.Error(1)
}

func TestSessionService_CompletedSessionPersisted(t *testing.T) {
	repo := new(MockSessionRepository)
	clock := clockwork.NewFakeClock()
	svc := NewSessionService(repo, clock)

	repo.On("Save", mock.MatchedBy(func(s *entity.TypingSession) bool {
		return s.UserID == "user-1" && s.Accuracy == 100 && s.TextLength > 0
	})).Return(nil).Once()

	started, err := svc.StartSession("user-1", typing.TopicMotivation, typing.DifficultyBeginner)
	require.NoError(t, err)
	require.NotEmpty(t, started.Text)

	_, state, err := svc.ApplyInput(started.SessionID, "user-1", started.Text[:1])
	require.NoError(t, err)
	assert.Equal(t, typing.SessionRunning, state)

	clock.Advance(30 * time.Second)
	_, state, err = svc.ApplyInput(started.SessionID, "user-1", started.Text)
	require.NoError(t, err)
	assert.Equal(t, typing.SessionCompleted, state)

	repo.AssertExpectations(t)
}

func TestSessionService_FailedSessionNotPersisted(t *testing.T) {
	repo := new(MockSessionRepository)
	clock := clockwork.NewFakeClock()
	svc := NewSessionService(repo, clock)

	// Порог expert = 95: ввод с ошибками проваливает сессию,
	// Save не должен вызываться
	started, err := svc.StartSession("user-1", typing.TopicCode, typing.DifficultyExpert)
	require.NoError(t, err)

	wrong := strings.Repeat("@", len([]rune(started.Text)))
	_, state, err := svc.ApplyInput(started.SessionID, "user-1", wrong)
	require.NoError(t, err)
	assert.Equal(t, typing.SessionFailed, state)

	repo.AssertNotCalled(t, "Save", mock.Anything)
}

func TestSessionService_OwnershipEnforced(t *testing.T) {
	repo := new(MockSessionRepository)
	svc := NewSessionService(repo, clockwork.NewFakeClock())

	started, err := svc.StartSession("user-1", typing.TopicNature, typing.DifficultyBeginner)
	require.NoError(t, err)

	_, _, err = svc.ApplyInput(started.SessionID, "user-2", "a")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = svc.Result(started.SessionID, "user-2")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestSessionService_UnknownSession(t *testing.T) {
	repo := new(MockSessionRepository)
	svc := NewSessionService(repo, clockwork.NewFakeClock())

	_, _, err := svc.ApplyInput("missing", "user-1", "a")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSessionService_InvalidDifficulty(t *testing.T) {
	repo := new(MockSessionRepository)
	svc := NewSessionService(repo, clockwork.NewFakeClock())

	_, err := svc.StartSession("user-1", typing.TopicNature, typing.Difficulty(99))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestSessionService_Abandon(t *testing.T) {
	repo := new(MockSessionRepository)
	svc := NewSessionService(repo, clockwork.NewFakeClock())

	started, err := svc.StartSession("user-1", typing.TopicNature, typing.DifficultyBeginner)
	require.NoError(t, err)

	require.NoError(t, svc.Abandon(started.SessionID, "user-1"))

	_, _, err = svc.ApplyInput(started.SessionID, "user-1", "a")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	repo.AssertNotCalled(t, "Save", mock.Anything)
}
