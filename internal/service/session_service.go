package service

import (
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/razi112/fynzatyp/internal/domain/entity"
	"github.com/razi112/fynzatyp/internal/domain/repository"
	apperrors "github.com/razi112/fynzatyp/internal/pkg/errors"
	"github.com/razi112/fynzatyp/internal/typing"
)

// activeSession - одиночная сессия вместе с владельцем
type activeSession struct {
	session *typing.Session
	userID  string
}

// SessionService управляет одиночными тренировками: выдает текст,
// принимает ввод и сохраняет результаты успешных сессий. Проваленные
// сессии (точность ниже порога уровня) в историю не попадают.
type SessionService struct {
	sessionRepo repository.SessionRepository
	clock       clockwork.Clock

	mu     sync.Mutex
	active map[string]*activeSession
}

// NewSessionService создает сервис одиночных тренировок
func NewSessionService(sessionRepo repository.SessionRepository, clock clockwork.Clock) *SessionService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SessionService{
		sessionRepo: sessionRepo,
		clock:       clock,
		active:      make(map[string]*activeSession),
	}
}

// StartedSession - ответ на запуск сессии
type StartedSession struct {
	SessionID  string         `json:"session_id"`
	Text       string         `json:"text"`
	Topic      string         `json:"topic"`
	Difficulty string         `json:"difficulty"`
	Profile    typing.Profile `json:"profile"`
}

// StartSession создает сессию: текст выбирается по теме и уровню сложности
func (s *SessionService) StartSession(userID, topic string, difficulty typing.Difficulty) (*StartedSession, error) {
	if !difficulty.Valid() {
		return nil, apperrors.ErrValidation
	}
	text, err := typing.TextFor(difficulty, topic)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.New().String()
	session := typing.NewSession(text, difficulty, topic, s.clock, func(r typing.SessionResult) {
		s.onFinish(sessionID, userID, r)
	})

	s.mu.Lock()
	s.active[sessionID] = &activeSession{session: session, userID: userID}
	s.mu.Unlock()

	return &StartedSession{
		SessionID:  sessionID,
		Text:       text,
		Topic:      topic,
		Difficulty: difficulty.String(),
		Profile:    difficulty.Profile(),
	}, nil
}

// ApplyInput принимает полный текущий ввод пользователя в сессии
func (s *SessionService) ApplyInput(sessionID, userID, input string) (typing.Metrics, typing.SessionState, error) {
	s.mu.Lock()
	a, ok := s.active[sessionID]
	s.mu.Unlock()
	if !ok {
		return typing.Metrics{}, "", apperrors.ErrNotFound
	}
	if a.userID != userID {
		return typing.Metrics{}, "", apperrors.ErrForbidden
	}

	m, err := a.session.ApplyInput(input)
	if err != nil {
		return m, a.session.State(), err
	}
	return m, a.session.State(), nil
}

// Result возвращает итог сессии
func (s *SessionService) Result(sessionID, userID string) (typing.SessionResult, error) {
	s.mu.Lock()
	a, ok := s.active[sessionID]
	s.mu.Unlock()
	if !ok {
		return typing.SessionResult{}, apperrors.ErrNotFound
	}
	if a.userID != userID {
		return typing.SessionResult{}, apperrors.ErrForbidden
	}
	return a.session.Result(), nil
}

// Abandon снимает незавершенную сессию без сохранения
func (s *SessionService) Abandon(sessionID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.active[sessionID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if a.userID != userID {
		return apperrors.ErrForbidden
	}
	delete(s.active, sessionID)
	return nil
}

// History возвращает сохраненные сессии пользователя
func (s *SessionService) History(userID string) ([]entity.TypingSession, error) {
	return s.sessionRepo.ListByUser(userID, nil)
}

// onFinish вызывается сессией ровно один раз при завершении.
// Сохраняется только успешный результат.
func (s *SessionService) onFinish(sessionID, userID string, r typing.SessionResult) {
	if r.State != typing.SessionCompleted {
		log.Printf("[SessionService] Сессия %s провалена (точность %d%%), результат не сохраняется",
			sessionID, r.Metrics.Accuracy)
		return
	}

	record := &entity.TypingSession{
		ID:              uuid.New().String(),
		UserID:          userID,
		WPM:             r.Metrics.WPM,
		Accuracy:        r.Metrics.Accuracy,
		DurationSeconds: int(r.Duration.Seconds()),
		TextLength:      r.TextLength,
		TextTopic:       r.Topic,
		Difficulty:      r.Difficulty.String(),
		CorrectChars:    r.Metrics.Correct,
		IncorrectChars:  r.Metrics.Incorrect,
		TotalChars:      r.Metrics.Correct + r.Metrics.Incorrect,
		CompletedAt:     s.clock.Now(),
	}
	if err := s.sessionRepo.Save(record); err != nil {
		log.Printf("[SessionService] Ошибка сохранения сессии %s: %v", sessionID, err)
		return
	}
	log.Printf("[SessionService] Сессия %s сохранена: wpm=%d, точность=%d%%", sessionID, r.Metrics.WPM, r.Metrics.Accuracy)
}
