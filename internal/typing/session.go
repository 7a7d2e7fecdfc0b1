package typing

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Состояния одиночной сессии
type SessionState string

const (
	SessionIdle      SessionState = "idle"      // Текст показан, набор не начат
	SessionRunning   SessionState = "running"   // Идет набор
	SessionCompleted SessionState = "completed" // Текст набран, порог точности пройден
	SessionFailed    SessionState = "failed"    // Порог точности не пройден или вышло время
)

// ErrSessionFinished возвращается при вводе в уже завершенную сессию
var ErrSessionFinished = errors.New("session already finished")

// SessionResult содержит итог завершенной сессии
type SessionResult struct {
	Metrics    Metrics
	State      SessionState
	Difficulty Difficulty
	Topic      string
	TextLength int
	Duration   time.Duration
	Score      int // WPM * множитель уровня сложности
}

// Session представляет одиночную тренировку: явный объект состояния вместо
// разрозненных полей в UI. Владеет текстом, вводом пользователя и таймером
// лимита времени.
//
// Таймер запускается на первое непустое нажатие, а не на показ экрана,
// и идет независимо от дальнейших нажатий.
type Session struct {
	mu sync.Mutex

	text       string
	textRunes  []rune
	difficulty Difficulty
	profile    Profile
	topic      string
	clock      clockwork.Clock

	state     SessionState
	userInput string
	startedAt time.Time
	finished  time.Time
	metrics   Metrics
	timer     clockwork.Timer

	// onFinish вызывается ровно один раз при переходе в completed/failed
	onFinish func(SessionResult)
}

// NewSession создает сессию в состоянии idle
func NewSession(text string, difficulty Difficulty, topic string, clock clockwork.Clock, onFinish func(SessionResult)) *Session {
	return &Session{
		text:       text,
		textRunes:  []rune(text),
		difficulty: difficulty,
		profile:    difficulty.Profile(),
		topic:      topic,
		clock:      clock,
		state:      SessionIdle,
		metrics:    Metrics{Accuracy: 100},
		onFinish:   onFinish,
	}
}

// ApplyInput принимает полный текущий ввод пользователя и пересчитывает
// метрики. Ввод длиннее текста обрезается до длины текста. На последнем
// символе сессия замораживается и оценивается завершение.
func (s *Session) ApplyInput(input string) (Metrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == SessionCompleted || s.state == SessionFailed {
		return s.metrics, ErrSessionFinished
	}

	inputRunes := []rune(input)
	if len(inputRunes) > len(s.textRunes) {
		inputRunes = inputRunes[:len(s.textRunes)]
		input = string(inputRunes)
	}

	// Таймер стартует на первое непустое нажатие
	if s.state == SessionIdle && len(inputRunes) > 0 {
		s.state = SessionRunning
		s.startedAt = s.clock.Now()
		if s.profile.TimeLimit > 0 {
			s.timer = s.clock.AfterFunc(s.profile.TimeLimit, s.timeExpired)
		}
	}

	s.userInput = input

	m, err := Compute(input, s.text, s.elapsedLocked())
	if err != nil {
		return s.metrics, err
	}
	s.metrics = m

	if len(inputRunes) == len(s.textRunes) && len(s.textRunes) > 0 {
		s.finishLocked()
	}
	return s.metrics, nil
}

// timeExpired вызывается таймером лимита: завершение оценивается по тому
// вводу, который есть на этот момент.
func (s *Session) timeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionRunning {
		return
	}
	s.finishLocked()
}

// finishLocked оценивает завершение. Если профиль задает порог точности и
// итоговая точность ниже — сессия проваливается: никакого сохранения
// результата, только локальный отчет.
func (s *Session) finishLocked() {
	s.finished = s.clock.Now()
	if s.timer != nil {
		s.timer.Stop()
	}

	if s.profile.AccuracyThreshold > 0 && s.metrics.Accuracy < s.profile.AccuracyThreshold {
		s.state = SessionFailed
	} else {
		s.state = SessionCompleted
	}

	if s.onFinish != nil {
		s.onFinish(s.resultLocked())
	}
}

func (s *Session) elapsedLocked() time.Duration {
	if s.startedAt.IsZero() {
		return 0
	}
	return s.clock.Now().Sub(s.startedAt)
}

// State возвращает текущее состояние сессии
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Metrics возвращает последние рассчитанные метрики
func (s *Session) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

// Text возвращает целевой текст сессии
func (s *Session) Text() string {
	return s.text
}

// Result возвращает итог сессии (валиден в completed/failed)
func (s *Session) Result() SessionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resultLocked()
}

func (s *Session) resultLocked() SessionResult {
	duration := time.Duration(0)
	if !s.startedAt.IsZero() && !s.finished.IsZero() {
		duration = s.finished.Sub(s.startedAt)
	}
	return SessionResult{
		Metrics:    s.metrics,
		State:      s.state,
		Difficulty: s.difficulty,
		Topic:      s.topic,
		TextLength: len(s.textRunes),
		Duration:   duration,
		Score:      int(math.Round(float64(s.metrics.WPM) * s.profile.ScoreMultiplier)),
	}
}
