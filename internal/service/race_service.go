package service

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/razi112/fynzatyp/internal/domain/entity"
	"github.com/razi112/fynzatyp/internal/domain/repository"
	"github.com/razi112/fynzatyp/internal/service/racemanager"
	"github.com/razi112/fynzatyp/internal/typing"
)

// RaceService управляет координаторами гонок: по одному на подключенного
// пользователя. Координатор создается при создании или присоединении к
// гонке и снимается при выходе или отключении.
type RaceService struct {
	store    racemanager.Store
	raceRepo repository.RaceRepository
	clock    clockwork.Clock
	config   racemanager.Config

	mu           sync.Mutex
	coordinators map[string]*racemanager.Coordinator
}

// NewRaceService создает сервис гонок
func NewRaceService(
	store racemanager.Store,
	raceRepo repository.RaceRepository,
	clock clockwork.Clock,
	config racemanager.Config,
) *RaceService {
	return &RaceService{
		store:        store,
		raceRepo:     raceRepo,
		clock:        clock,
		config:       config,
		coordinators: make(map[string]*racemanager.Coordinator),
	}
}

// coordinatorFor возвращает координатор пользователя, создавая при
// необходимости
func (s *RaceService) coordinatorFor(userID, displayName string) *racemanager.Coordinator {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.coordinators[userID]; ok {
		return c
	}
	c := racemanager.NewCoordinator(userID, displayName, racemanager.Dependencies{
		Store:  s.store,
		Clock:  s.clock,
		Config: s.config,
	})
	s.coordinators[userID] = c
	return c
}

// coordinator возвращает существующий координатор пользователя
func (s *RaceService) coordinator(userID string) (*racemanager.Coordinator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coordinators[userID]
	if !ok {
		return nil, racemanager.ErrNotInRace
	}
	return c, nil
}

// CreateRace создает гонку от имени пользователя
func (s *RaceService) CreateRace(ctx context.Context, userID, displayName, topic string, difficulty typing.Difficulty, maxPlayers int) (racemanager.Snapshot, error) {
	return s.coordinatorFor(userID, displayName).CreateRace(ctx, topic, difficulty, maxPlayers)
}

// JoinRace присоединяет пользователя к гонке по коду приглашения
func (s *RaceService) JoinRace(ctx context.Context, userID, displayName, code string) (racemanager.Snapshot, error) {
	return s.coordinatorFor(userID, displayName).JoinRace(ctx, code)
}

// StartRace запускает гонку (доступно только хосту)
func (s *RaceService) StartRace(ctx context.Context, userID string) error {
	c, err := s.coordinator(userID)
	if err != nil {
		return err
	}
	return c.Start(ctx)
}

// ApplyInput передает полный текущий ввод пользователя в гонку
func (s *RaceService) ApplyInput(ctx context.Context, userID, typed string) (typing.Metrics, error) {
	c, err := s.coordinator(userID)
	if err != nil {
		return typing.Metrics{}, err
	}
	return c.OnInput(ctx, typed)
}

// LeaveRace выводит пользователя из гонки и снимает координатор
func (s *RaceService) LeaveRace(ctx context.Context, userID string) error {
	c, err := s.coordinator(userID)
	if err != nil {
		return err
	}
	if err := c.Leave(ctx); err != nil {
		return err
	}
	s.Detach(userID)
	return nil
}

// Snapshot возвращает локальную картину гонки пользователя
func (s *RaceService) Snapshot(userID string) (racemanager.Snapshot, error) {
	c, err := s.coordinator(userID)
	if err != nil {
		return racemanager.Snapshot{}, err
	}
	return c.Snapshot()
}

// Updates возвращает канал снапшотов гонки пользователя
func (s *RaceService) Updates(userID string) (<-chan racemanager.Snapshot, error) {
	c, err := s.coordinator(userID)
	if err != nil {
		return nil, err
	}
	return c.Updates(), nil
}

// Detach снимает координатор пользователя без удаления из гонки.
// Вызывается при разрыве WebSocket-соединения.
func (s *RaceService) Detach(userID string) {
	s.mu.Lock()
	c, ok := s.coordinators[userID]
	delete(s.coordinators, userID)
	s.mu.Unlock()
	if ok {
		c.Close()
	}
}

// GetRace возвращает гонку по ID для REST-чтения
func (s *RaceService) GetRace(id string) (*entity.Race, error) {
	return s.raceRepo.GetByID(id)
}

// ListRaces возвращает список гонок с пагинацией
func (s *RaceService) ListRaces(limit, offset int) ([]entity.Race, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.raceRepo.List(limit, offset)
}
