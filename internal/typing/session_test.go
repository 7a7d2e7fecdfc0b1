package typing

import (
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_TimerStartsOnFirstKeystroke(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewSession("hello world", DifficultyBeginner, TopicMotivation, clock, nil)

	assert.Equal(t, SessionIdle, s.State())

	// Показ текста не запускает таймер
	clock.Advance(10 * time.Second)
	m, err := s.ApplyInput("h")
	require.NoError(t, err)
	assert.Equal(t, SessionRunning, s.State())

	// Сразу после первого нажатия прошло 0 времени
	assert.Equal(t, 0, m.WPM)

	clock.Advance(time.Minute)
	m, err = s.ApplyInput("hello")
	require.NoError(t, err)
	// 5 символов = 1 слово за 1 минуту
	assert.Equal(t, 1, m.WPM)
}

func TestSession_CompletesOnLastCharacter(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var got *SessionResult
	s := NewSession("abc", DifficultyBeginner, TopicQuotes, clock, func(r SessionResult) {
		got = &r
	})

	_, err := s.ApplyInput("ab")
	require.NoError(t, err)
	assert.Equal(t, SessionRunning, s.State())
	assert.Nil(t, got)

	clock.Advance(30 * time.Second)
	_, err = s.ApplyInput("abc")
	require.NoError(t, err)

	assert.Equal(t, SessionCompleted, s.State())
	require.NotNil(t, got)
	assert.Equal(t, SessionCompleted, got.State)
	assert.Equal(t, 100, got.Metrics.Accuracy)
	assert.Equal(t, 30*time.Second, got.Duration)
}

func TestSession_FailsBelowAccuracyThreshold(t *testing.T) {
	// Порог advanced = 85: точность 80 проваливает сессию
	clock := clockwork.NewFakeClock()
	target := strings.Repeat("a", 100)
	typed := strings.Repeat("a", 80) + strings.Repeat("b", 20)

	var got *SessionResult
	s := NewSession(target, DifficultyAdvanced, TopicNature, clock, func(r SessionResult) {
		got = &r
	})

	_, err := s.ApplyInput(typed)
	require.NoError(t, err)

	assert.Equal(t, SessionFailed, s.State())
	require.NotNil(t, got)
	assert.Equal(t, SessionFailed, got.State)
	assert.Equal(t, 80, got.Metrics.Accuracy)
}

func TestSession_BeginnerHasNoThreshold(t *testing.T) {
	clock := clockwork.NewFakeClock()
	target := strings.Repeat("a", 10)
	typed := strings.Repeat("b", 10) // точность 0

	s := NewSession(target, DifficultyBeginner, TopicNature, clock, nil)
	_, err := s.ApplyInput(typed)
	require.NoError(t, err)
	assert.Equal(t, SessionCompleted, s.State())
}

func TestSession_TimeLimitForcesFinish(t *testing.T) {
	// Лимит expert = 30 секунд
	clock := clockwork.NewFakeClock()
	results := make(chan SessionResult, 1)
	s := NewSession("some expert text", DifficultyExpert, TopicQuotes, clock, func(r SessionResult) {
		results <- r
	})

	_, err := s.ApplyInput("some")
	require.NoError(t, err)
	assert.Equal(t, SessionRunning, s.State())

	// Колбэк таймера срабатывает в собственной горутине
	clock.Advance(30 * time.Second)
	select {
	case r := <-results:
		// Точность частичного ввода 100, поэтому completed, а не failed
		assert.Equal(t, SessionCompleted, r.State)
		assert.Equal(t, 30*time.Second, r.Duration)
	case <-time.After(time.Second):
		t.Fatal("лимит времени не завершил сессию")
	}
	assert.Equal(t, SessionCompleted, s.State())
}

func TestSession_TimeLimitWithBadAccuracyFails(t *testing.T) {
	clock := clockwork.NewFakeClock()
	target := strings.Repeat("a", 50)
	s := NewSession(target, DifficultyExpert, TopicCode, clock, nil)

	_, err := s.ApplyInput(strings.Repeat("b", 10))
	require.NoError(t, err)

	// Колбэк таймера срабатывает в собственной горутине
	clock.Advance(30 * time.Second)
	require.Eventually(t, func() bool {
		return s.State() == SessionFailed
	}, time.Second, 10*time.Millisecond)
}

func TestSession_OverlongInputTruncated(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewSession("abc", DifficultyBeginner, TopicCode, clock, nil)

	m, err := s.ApplyInput("abcdef")
	require.NoError(t, err)

	// Лишний хвост отброшен, сессия завершена по длине текста
	assert.Equal(t, 100, m.Progress)
	assert.Equal(t, 3, m.Correct)
	assert.Equal(t, SessionCompleted, s.State())
}

func TestSession_InputAfterFinishRejected(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewSession("abc", DifficultyBeginner, TopicCode, clock, nil)

	_, err := s.ApplyInput("abc")
	require.NoError(t, err)

	_, err = s.ApplyInput("ab")
	assert.ErrorIs(t, err, ErrSessionFinished)
	// Метрики не изменились
	assert.Equal(t, 100, s.Metrics().Progress)
}

func TestSession_EmptyInputDoesNotStartTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewSession("abc", DifficultyExpert, TopicCode, clock, nil)

	_, err := s.ApplyInput("")
	require.NoError(t, err)
	assert.Equal(t, SessionIdle, s.State())

	// Лимит времени не должен тикать до первого нажатия
	clock.Advance(time.Minute)
	assert.Equal(t, SessionIdle, s.State())
}

func TestSession_ScoreAppliesMultiplier(t *testing.T) {
	clock := clockwork.NewFakeClock()
	target := strings.Repeat("a", 25)
	s := NewSession(target, DifficultyExpert, TopicNature, clock, nil)

	_, err := s.ApplyInput("a")
	require.NoError(t, err)
	clock.Advance(15 * time.Second)
	_, err = s.ApplyInput(target)
	require.NoError(t, err)

	r := s.Result()
	// 25 символов = 5 слов за 0.25 минуты -> 20 WPM, expert x2.0 -> 40
	assert.Equal(t, 20, r.Metrics.WPM)
	assert.Equal(t, 40, r.Score)
}
