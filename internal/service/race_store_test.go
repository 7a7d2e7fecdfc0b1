package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/razi112/fynzatyp/internal/domain/entity"
	"github.com/razi112/fynzatyp/internal/pubsub"
	"github.com/razi112/fynzatyp/internal/service/racemanager"
)

// MockRaceRepository реализует repository.RaceRepository
type MockRaceRepository struct {
	mock.Mock
}

func (m *MockRaceRepository) Create(race *entity.Race) error {
	args := m.Called(race)
	return args.Error(0)
}

func (m *MockRaceRepository) GetByID(id string) (*entity.Race, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Race), args.Error(1)
}

func (m *MockRaceRepository) FindJoinableByCode(code string) (*entity.Race, error) {
	args := m.Called(code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Race), args.Error(1)
}

func (m *MockRaceRepository) UpdateFields(raceID string, fields map[string]interface{}) error {
	args := m.Called(raceID, fields)
	return args.Error(0)
}

func (m *MockRaceRepository) StartRace(raceID string, startedAt time.Time) (bool, error) {
	args := m.Called(raceID, startedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockRaceRepository) CompleteStalled(raceID string) (bool, error) {
	args := m.Called(raceID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRaceRepository) List(limit, offset int) ([]entity.Race, error) {
	args := m.Called(limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Race), args.Error(1)
}

// MockParticipantRepository реализует repository.ParticipantRepository
type MockParticipantRepository struct {
	mock.Mock
}

func (m *MockParticipantRepository) Create(participant *entity.Participant) error {
	args := m.Called(participant)
	return args.Error(0)
}

func (m *MockParticipantRepository) GetByRaceAndUser(raceID, userID string) (*entity.Participant, error) {
	args := m.Called(raceID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Participant), args.Error(1)
}

func (m *MockParticipantRepository) ListByRace(raceID string) ([]entity.Participant, error) {
	args := m.Called(raceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Participant), args.Error(1)
}

func (m *MockParticipantRepository) CountByRace(raceID string) (int64, error) {
	args := m.Called(raceID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockParticipantRepository) UpdateFields(raceID, userID string, fields map[string]interface{}) error {
	args := m.Called(raceID, userID, fields)
	return args.Error(0)
}

func (m *MockParticipantRepository) Delete(raceID, userID string) error {
	args := m.Called(raceID, userID)
	return args.Error(0)
}

func TestPersistentRaceStore_ParticipantUpdateReachesSubscribers(t *testing.T) {
	raceRepo := new(MockRaceRepository)
	participantRepo := new(MockParticipantRepository)
	store := NewPersistentRaceStore(raceRepo, participantRepo, pubsub.NewLocalPubSub())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := store.Subscribe(ctx, "race-1")
	require.NoError(t, err)

	updated := &entity.Participant{RaceID: "race-1", UserID: "user-1", Progress: 42, WPM: 60}
	participantRepo.On("UpdateFields", "race-1", "user-1", mock.Anything).Return(nil).Once()
	participantRepo.On("GetByRaceAndUser", "race-1", "user-1").Return(updated, nil).Once()

	require.NoError(t, store.UpdateParticipant("race-1", "user-1", map[string]interface{}{"progress": 42}))

	select {
	case ev := <-events:
		assert.Equal(t, racemanager.OpUpdate, ev.Op)
		assert.Equal(t, racemanager.TableParticipants, ev.Table)
		require.NotNil(t, ev.Participant)
		assert.Equal(t, 42, ev.Participant.Progress)
		assert.False(t, ev.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("событие не доставлено подписчику")
	}
}

func TestPersistentRaceStore_DeletePublishesLastKnownRow(t *testing.T) {
	raceRepo := new(MockRaceRepository)
	participantRepo := new(MockParticipantRepository)
	store := NewPersistentRaceStore(raceRepo, participantRepo, pubsub.NewLocalPubSub())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := store.Subscribe(ctx, "race-1")
	require.NoError(t, err)

	row := &entity.Participant{RaceID: "race-1", UserID: "user-1", Progress: 73}
	participantRepo.On("GetByRaceAndUser", "race-1", "user-1").Return(row, nil).Once()
	participantRepo.On("Delete", "race-1", "user-1").Return(nil).Once()

	require.NoError(t, store.DeleteParticipant("race-1", "user-1"))

	select {
	case ev := <-events:
		assert.Equal(t, racemanager.OpDelete, ev.Op)
		require.NotNil(t, ev.Participant)
		assert.Equal(t, "user-1", ev.Participant.UserID)
	case <-time.After(time.Second):
		t.Fatal("событие не доставлено подписчику")
	}
}

func TestPersistentRaceStore_StartRacePublishesOnlyWinningWrite(t *testing.T) {
	raceRepo := new(MockRaceRepository)
	participantRepo := new(MockParticipantRepository)
	store := NewPersistentRaceStore(raceRepo, participantRepo, pubsub.NewLocalPubSub())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := store.Subscribe(ctx, "race-1")
	require.NoError(t, err)

	startedAt := time.Now()
	started := &entity.Race{ID: "race-1", Status: entity.RaceStatusInProgress, StartedAt: &startedAt}
	raceRepo.On("StartRace", "race-1", startedAt).Return(true, nil).Once()
	raceRepo.On("GetByID", "race-1").Return(started, nil).Once()

	ok, err := store.StartRace("race-1", startedAt)
	require.NoError(t, err)
	assert.True(t, ok)

	select {
	case ev := <-events:
		assert.Equal(t, racemanager.TableRaces, ev.Table)
		require.NotNil(t, ev.Race)
		assert.Equal(t, entity.RaceStatusInProgress, ev.Race.Status)
	case <-time.After(time.Second):
		t.Fatal("событие не доставлено подписчику")
	}

	// Проигравшая запись: переход уже сделан, события нет
	raceRepo.On("StartRace", "race-1", startedAt).Return(false, nil).Once()
	ok, err = store.StartRace("race-1", startedAt)
	require.NoError(t, err)
	assert.False(t, ok)

	select {
	case ev := <-events:
		t.Fatalf("неожиданное событие: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPersistentRaceStore_CompleteRaceIdempotent(t *testing.T) {
	raceRepo := new(MockRaceRepository)
	participantRepo := new(MockParticipantRepository)
	store := NewPersistentRaceStore(raceRepo, participantRepo, pubsub.NewLocalPubSub())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := store.Subscribe(ctx, "race-1")
	require.NoError(t, err)

	// Повторный вызов: гонка уже completed, события нет
	raceRepo.On("CompleteStalled", "race-1").Return(false, nil).Once()

	completed, err := store.CompleteRace("race-1")
	require.NoError(t, err)
	assert.False(t, completed)

	select {
	case ev := <-events:
		t.Fatalf("неожиданное событие: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
	raceRepo.AssertNotCalled(t, "GetByID", mock.Anything)
}

func TestPersistentRaceStore_CompleteRacePublishesTransition(t *testing.T) {
	raceRepo := new(MockRaceRepository)
	participantRepo := new(MockParticipantRepository)
	store := NewPersistentRaceStore(raceRepo, participantRepo, pubsub.NewLocalPubSub())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := store.Subscribe(ctx, "race-1")
	require.NoError(t, err)

	race := &entity.Race{ID: "race-1", Status: entity.RaceStatusCompleted}
	raceRepo.On("CompleteStalled", "race-1").Return(true, nil).Once()
	raceRepo.On("GetByID", "race-1").Return(race, nil).Once()

	completed, err := store.CompleteRace("race-1")
	require.NoError(t, err)
	assert.True(t, completed)

	select {
	case ev := <-events:
		assert.Equal(t, racemanager.TableRaces, ev.Table)
		require.NotNil(t, ev.Race)
		assert.Equal(t, entity.RaceStatusCompleted, ev.Race.Status)
	case <-time.After(time.Second):
		t.Fatal("событие не доставлено подписчику")
	}
}
