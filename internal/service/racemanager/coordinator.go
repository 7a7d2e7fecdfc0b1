package racemanager

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/razi112/fynzatyp/internal/domain/entity"
	"github.com/razi112/fynzatyp/internal/domain/repository"
	apperrors "github.com/razi112/fynzatyp/internal/pkg/errors"
	"github.com/razi112/fynzatyp/internal/typing"
)

// Алфавит кодов приглашения: заглавные буквы и цифры
const joinCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Запас страховочного таймера отсчета сверх его номинальной длительности:
// штатный переход пишет координатор хоста, страховочный срабатывает чуть позже
const countdownGrace = time.Second

func newJoinCode(length int) string {
	code := make([]byte, length)
	for i := range code {
		code[i] = joinCodeAlphabet[rand.Intn(len(joinCodeAlphabet))]
	}
	return string(code)
}

// Coordinator - движок гонки на стороне одного клиента. Он выполняет
// операции пользователя через Store, подписывается на ленту изменений
// гонки и сворачивает ее в локальную картину RaceState. Координаторы
// разных клиентов не общаются напрямую: вся синхронизация идет через
// записи в Store и ленту изменений.
type Coordinator struct {
	cfg   Config
	store Store
	clock clockwork.Clock

	userID      string
	displayName string

	mu             sync.Mutex
	state          *RaceState
	raceID         string
	cancel         context.CancelFunc
	updates        chan Snapshot
	countdownTimer clockwork.Timer
	watchdogTimer  clockwork.Timer
	completedWrite bool
	done           chan struct{}

	// typingStartedAt - собственный секундомер участника. Защелкивается
	// на первом непустом вводе: задержки присоединения и доставки старта
	// у клиентов разные, поэтому WPM не считается от старта гонки.
	typingStartedAt *time.Time
}

// NewCoordinator создает координатор для одного пользователя
func NewCoordinator(userID, displayName string, deps Dependencies) *Coordinator {
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Coordinator{
		cfg:         deps.Config,
		store:       deps.Store,
		clock:       clock,
		userID:      userID,
		displayName: displayName,
	}
}

// CreateRace создает гонку и присоединяет к ней хоста. Код приглашения
// генерируется с повторными попытками на случай коллизии.
func (c *Coordinator) CreateRace(ctx context.Context, topic string, difficulty typing.Difficulty, maxPlayers int) (Snapshot, error) {
	if !difficulty.Valid() {
		return Snapshot{}, apperrors.ErrValidation
	}
	if maxPlayers <= 0 {
		maxPlayers = c.cfg.DefaultMaxPlayers
	}
	text, err := typing.TextFor(difficulty, topic)
	if err != nil {
		return Snapshot{}, err
	}

	now := c.clock.Now()
	race := &entity.Race{
		ID:         uuid.New().String(),
		HostUserID: c.userID,
		Status:     entity.RaceStatusWaiting,
		RaceText:   text,
		TextTopic:  topic,
		Difficulty: difficulty.String(),
		MaxPlayers: maxPlayers,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	created := false
	for attempt := 0; attempt < c.cfg.JoinCodeMaxRetries; attempt++ {
		race.JoinCode = newJoinCode(c.cfg.JoinCodeLength)
		if err := c.store.CreateRace(race); err != nil {
			if errors.Is(err, repository.ErrJoinCodeTaken) {
				continue
			}
			return Snapshot{}, err
		}
		created = true
		break
	}
	if !created {
		return Snapshot{}, ErrJoinCodeGeneration
	}

	host := &entity.Participant{
		ID:          uuid.New().String(),
		RaceID:      race.ID,
		UserID:      c.userID,
		DisplayName: c.displayName,
		Accuracy:    100,
		JoinedAt:    now,
		UpdatedAt:   now,
	}
	if err := c.store.CreateParticipant(host); err != nil {
		return Snapshot{}, err
	}

	log.Printf("[RaceCoordinator] Гонка %s создана пользователем %s, код %s", race.ID, c.userID, race.JoinCode)
	return c.attach(ctx, *race, []entity.Participant{*host})
}

// JoinRace присоединяет пользователя к гонке по коду приглашения.
// Код сравнивается регистронезависимо.
func (c *Coordinator) JoinRace(ctx context.Context, code string) (Snapshot, error) {
	code = entity.NormalizeJoinCode(code)
	if code == "" {
		return Snapshot{}, ErrRaceNotJoinable
	}

	race, err := c.store.FindJoinableByCode(code)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return Snapshot{}, ErrRaceNotJoinable
		}
		return Snapshot{}, err
	}

	participants, err := c.store.ListParticipants(race.ID)
	if err != nil {
		return Snapshot{}, err
	}
	if err := CanJoin(race, len(participants)); err != nil {
		return Snapshot{}, err
	}

	now := c.clock.Now()
	self := &entity.Participant{
		ID:          uuid.New().String(),
		RaceID:      race.ID,
		UserID:      c.userID,
		DisplayName: c.displayName,
		Accuracy:    100,
		JoinedAt:    now,
		UpdatedAt:   now,
	}
	if err := c.store.CreateParticipant(self); err != nil {
		if errors.Is(err, repository.ErrDuplicateParticipant) {
			return Snapshot{}, ErrAlreadyJoined
		}
		return Snapshot{}, err
	}

	// Список перечитывается после вставки, чтобы снапшот содержал и нас,
	// и тех, кто успел вставиться параллельно
	participants, err = c.store.ListParticipants(race.ID)
	if err != nil {
		return Snapshot{}, err
	}

	log.Printf("[RaceCoordinator] Пользователь %s присоединился к гонке %s", c.userID, race.ID)
	return c.attach(ctx, *race, participants)
}

// attach строит локальную картину, подписывается на ленту изменений и
// запускает цикл свертки. Подписка живет дольше запроса, в котором
// произошло присоединение, поэтому контекст запроса не наследуется.
func (c *Coordinator) attach(ctx context.Context, race entity.Race, participants []entity.Participant) (Snapshot, error) {
	runCtx, cancel := context.WithCancel(context.Background())
	events, err := c.store.Subscribe(runCtx, race.ID)
	if err != nil {
		cancel()
		return Snapshot{}, err
	}

	c.mu.Lock()
	if c.raceID != "" {
		c.mu.Unlock()
		cancel()
		return Snapshot{}, ErrAlreadyJoined
	}
	c.state = NewRaceState(race, participants)
	c.raceID = race.ID
	c.cancel = cancel
	c.completedWrite = false
	c.typingStartedAt = nil
	c.updates = make(chan Snapshot, c.cfg.UpdateBufferSize)
	c.done = make(chan struct{})
	state := c.state
	updates := c.updates
	done := c.done
	c.mu.Unlock()

	go c.run(runCtx, events, state, updates, done)
	return state.Snapshot(), nil
}

// Start запускает гонку: хост переводит ее в countdown, по истечении
// отсчета переход в in_progress пишет первый сработавший таймер -
// хоста либо страховочный одного из участников
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	state := c.state
	raceID := c.raceID
	c.mu.Unlock()
	if state == nil {
		return ErrNotInRace
	}

	race := state.Race()
	// Число участников берется из хранилища, а не из локальной картины:
	// свежее присоединение могло еще не дойти через ленту изменений
	participants, err := c.store.ListParticipants(raceID)
	if err != nil {
		return err
	}
	if err := CanStart(&race, c.userID, len(participants), c.cfg.MinPlayers); err != nil {
		return err
	}

	c.mu.Lock()
	c.countdownTimer = c.clock.AfterFunc(time.Duration(c.cfg.CountdownSeconds)*time.Second, func() {
		c.beginRace(raceID)
	})
	c.mu.Unlock()

	now := c.clock.Now()
	if err := c.store.UpdateRace(raceID, map[string]interface{}{
		"status":     entity.RaceStatusCountdown,
		"updated_at": now,
	}); err != nil {
		c.stopTimers()
		return err
	}

	log.Printf("[RaceCoordinator] Гонка %s: обратный отсчет %d сек", raceID, c.cfg.CountdownSeconds)
	return nil
}

// beginRace переводит гонку в in_progress после обратного отсчета.
// Запись условная: из нескольких таймеров срабатывает первый, остальные
// получают false и молчат.
func (c *Coordinator) beginRace(raceID string) {
	ok, err := c.store.StartRace(raceID, c.clock.Now())
	if err != nil {
		log.Printf("[RaceCoordinator] Ошибка старта гонки %s: %v", raceID, err)
		return
	}
	if !ok {
		return
	}
	c.armWatchdog(raceID, c.cfg.MaxRaceDuration)
	log.Printf("[RaceCoordinator] Гонка %s стартовала", raceID)
}

// armCountdownFallback взводит страховочный таймер отсчета. Штатно
// countdown -> in_progress пишет координатор хоста, но хост может пропасть
// посреди отсчета: тогда гонку запускает любой оставшийся участник, иначе
// она навсегда зависнет в countdown и удержит свой код приглашения.
func (c *Coordinator) armCountdownFallback(raceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.countdownTimer != nil || c.raceID != raceID {
		return
	}
	after := time.Duration(c.cfg.CountdownSeconds)*time.Second + countdownGrace
	c.countdownTimer = c.clock.AfterFunc(after, func() {
		c.beginRace(raceID)
	})
}

// armWatchdog взводит сторожевой таймер: зависшая гонка принудительно
// завершается, чтобы брошенные гонки не оставались in_progress навсегда
func (c *Coordinator) armWatchdog(raceID string, after time.Duration) {
	if after <= 0 {
		after = time.Nanosecond
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watchdogTimer != nil || c.raceID != raceID {
		return
	}
	// Гонка стартовала - отсчет и его страховка больше не нужны
	if c.countdownTimer != nil {
		c.countdownTimer.Stop()
		c.countdownTimer = nil
	}
	c.watchdogTimer = c.clock.AfterFunc(after, func() {
		ok, err := c.store.CompleteRace(raceID)
		if err != nil {
			log.Printf("[RaceCoordinator] Watchdog: ошибка завершения гонки %s: %v", raceID, err)
			return
		}
		if ok {
			log.Printf("[RaceCoordinator] Watchdog: гонка %s завершена принудительно по таймауту", raceID)
		}
	})
}

// OnInput - горячий путь: полный текущий ввод пользователя на каждое
// нажатие. Метрики считаются от первого нажатия участника, записываются
// в Store и эхом разлетаются остальным через ленту изменений.
func (c *Coordinator) OnInput(ctx context.Context, typed string) (typing.Metrics, error) {
	c.mu.Lock()
	state := c.state
	raceID := c.raceID
	c.mu.Unlock()
	if state == nil {
		return typing.Metrics{}, ErrNotInRace
	}

	self, ok := state.Participant(c.userID)
	if !ok {
		return typing.Metrics{}, ErrNotInRace
	}
	if self.HasFinished() {
		return typing.Metrics{}, ErrAlreadyFinished
	}
	race := state.Race()
	if !race.IsActive() {
		return typing.Metrics{}, ErrRaceNotStarted
	}

	now := c.clock.Now()
	c.mu.Lock()
	if c.typingStartedAt == nil && typed != "" {
		c.typingStartedAt = &now
	}
	elapsed := time.Duration(0)
	if c.typingStartedAt != nil {
		elapsed = now.Sub(*c.typingStartedAt)
	}
	c.mu.Unlock()
	m, err := typing.Compute(typed, race.RaceText, elapsed)
	if err != nil {
		return typing.Metrics{}, err
	}

	fields := map[string]interface{}{
		"progress":   m.Progress,
		"wpm":        m.WPM,
		"accuracy":   m.Accuracy,
		"updated_at": now,
	}
	finished := m.Progress >= 100
	var position int
	if finished {
		// Позиция вычисляется из локально известного числа финишеров.
		// Два клиента могут насчитать одно место - свертка ремонтирует
		// коллизию при доставке событий.
		position = state.FinishedCount() + 1
		fields["finished_at"] = now
		fields["position"] = position
	}

	if err := c.store.UpdateParticipant(raceID, c.userID, fields); err != nil {
		return typing.Metrics{}, err
	}

	// Локальное эхо: собственное изменение применяется сразу, не дожидаясь
	// его возврата через ленту
	echo := self
	echo.Progress = m.Progress
	echo.WPM = m.WPM
	echo.Accuracy = m.Accuracy
	echo.UpdatedAt = now
	if finished {
		echo.FinishedAt = &now
		echo.Position = &position
	}
	if state.Apply(ChangeEvent{Op: OpUpdate, Table: TableParticipants, Participant: &echo, Timestamp: now}) {
		c.publish(state)
	}

	if finished {
		log.Printf("[RaceCoordinator] Пользователь %s финишировал в гонке %s (wpm=%d, позиция=%d)",
			c.userID, raceID, m.WPM, position)
		if state.AllFinished() {
			c.completeRace(raceID)
		}
	}
	return m, nil
}

// Leave удаляет участника из гонки и отключает координатор от ленты
func (c *Coordinator) Leave(ctx context.Context) error {
	c.mu.Lock()
	raceID := c.raceID
	c.mu.Unlock()
	if raceID == "" {
		return ErrNotInRace
	}

	if err := c.store.DeleteParticipant(raceID, c.userID); err != nil {
		return err
	}
	log.Printf("[RaceCoordinator] Пользователь %s покинул гонку %s", c.userID, raceID)
	c.Close()
	return nil
}

// completeRace идемпотентно пишет completed. Вызывается любым клиентом,
// чья локальная картина показывает финиш всех участников: гонка с
// условным переходом in_progress -> completed терпима к гонке записей.
func (c *Coordinator) completeRace(raceID string) {
	c.mu.Lock()
	if c.completedWrite {
		c.mu.Unlock()
		return
	}
	c.completedWrite = true
	c.mu.Unlock()

	ok, err := c.store.CompleteRace(raceID)
	if err != nil {
		log.Printf("[RaceCoordinator] Ошибка завершения гонки %s: %v", raceID, err)
		c.mu.Lock()
		c.completedWrite = false
		c.mu.Unlock()
		return
	}
	if ok {
		log.Printf("[RaceCoordinator] Гонка %s завершена", raceID)
	}
}

// run - цикл свертки: события ленты складываются в локальную картину,
// каждое изменение публикуется клиенту
func (c *Coordinator) run(ctx context.Context, events <-chan ChangeEvent, state *RaceState, updates chan Snapshot, done chan struct{}) {
	defer close(done)
	// Канал снапшотов закрывается только после того, как publish перестанет
	// его видеть
	defer func() {
		c.mu.Lock()
		if c.updates == updates {
			c.updates = nil
		}
		c.mu.Unlock()
		close(updates)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !state.Apply(ev) {
				continue
			}

			race := state.Race()
			switch {
			case race.IsCountdown():
				// Каждый участник, увидевший отсчет, страхует его завершение
				c.armCountdownFallback(race.ID)
			case race.IsActive():
				// Участники-не-хосты узнают о старте из ленты и взводят
				// собственный сторожевой таймер
				remaining := c.cfg.MaxRaceDuration
				if race.StartedAt != nil {
					remaining -= c.clock.Now().Sub(*race.StartedAt)
				}
				c.armWatchdog(race.ID, remaining)

				// Удаление участника может оставить только финишеров
				if ev.Table == TableParticipants && state.AllFinished() {
					c.completeRace(race.ID)
				}
			case race.IsCompleted():
				c.stopTimers()
			}

			c.publish(state)
		}
	}
}

// publish отправляет снапшот клиенту без блокировки: при переполнении
// буфера самый старый снапшот вытесняется
func (c *Coordinator) publish(state *RaceState) {
	snap := state.Snapshot()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.updates == nil {
		return
	}
	for {
		select {
		case c.updates <- snap:
			return
		default:
		}
		select {
		case <-c.updates:
		default:
		}
	}
}

// Updates возвращает канал снапшотов для клиента. Канал закрывается
// при отключении координатора от гонки.
func (c *Coordinator) Updates() <-chan Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updates
}

// Snapshot возвращает текущую локальную картину гонки
func (c *Coordinator) Snapshot() (Snapshot, error) {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	if state == nil {
		return Snapshot{}, ErrNotInRace
	}
	return state.Snapshot(), nil
}

// RaceID возвращает идентификатор гонки координатора ("" - не присоединен)
func (c *Coordinator) RaceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.raceID
}

func (c *Coordinator) stopTimers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.countdownTimer != nil {
		c.countdownTimer.Stop()
		c.countdownTimer = nil
	}
	if c.watchdogTimer != nil {
		c.watchdogTimer.Stop()
		c.watchdogTimer = nil
	}
}

// Close отключает координатор от гонки и останавливает таймеры
func (c *Coordinator) Close() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.raceID = ""
	c.state = nil
	c.updates = nil
	c.mu.Unlock()

	c.stopTimers()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}
