package racemanager

import (
	"context"
	"sync"
	"time"

	"github.com/razi112/fynzatyp/internal/domain/entity"
	"github.com/razi112/fynzatyp/internal/domain/repository"
	apperrors "github.com/razi112/fynzatyp/internal/pkg/errors"
)

// memStore - хранилище в памяти с лентой изменений для тестов
// координатора. Поведение повторяет контракт Store: каждая запись
// рассылается всем подписчикам гонки.
type memStore struct {
	mu           sync.Mutex
	races        map[string]*entity.Race
	participants map[string]map[string]*entity.Participant
	subs         map[string][]chan ChangeEvent
}

func newMemStore() *memStore {
	return &memStore{
		races:        make(map[string]*entity.Race),
		participants: make(map[string]map[string]*entity.Participant),
		subs:         make(map[string][]chan ChangeEvent),
	}
}

func (m *memStore) broadcastLocked(raceID string, ev ChangeEvent) {
	for _, ch := range m.subs[raceID] {
		ch <- ev
	}
}

func (m *memStore) CreateRace(race *entity.Race) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	code := entity.NormalizeJoinCode(race.JoinCode)
	for _, r := range m.races {
		if !r.IsCompleted() && entity.NormalizeJoinCode(r.JoinCode) == code {
			return repository.ErrJoinCodeTaken
		}
	}
	saved := *race
	m.races[race.ID] = &saved
	return nil
}

func (m *memStore) GetRace(id string) (*entity.Race, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.races[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) FindJoinableByCode(code string) (*entity.Race, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code = entity.NormalizeJoinCode(code)
	for _, r := range m.races {
		if r.IsWaiting() && entity.NormalizeJoinCode(r.JoinCode) == code {
			cp := *r
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *memStore) UpdateRace(raceID string, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.races[raceID]
	if !ok {
		return apperrors.ErrNotFound
	}
	applyRaceFields(r, fields)
	cp := *r
	m.broadcastLocked(raceID, ChangeEvent{Op: OpUpdate, Table: TableRaces, Race: &cp, Timestamp: r.UpdatedAt})
	return nil
}

func (m *memStore) StartRace(raceID string, startedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.races[raceID]
	if !ok {
		return false, apperrors.ErrNotFound
	}
	if r.Status != entity.RaceStatusCountdown {
		return false, nil
	}
	r.Status = entity.RaceStatusInProgress
	r.StartedAt = &startedAt
	r.UpdatedAt = startedAt
	cp := *r
	m.broadcastLocked(raceID, ChangeEvent{Op: OpUpdate, Table: TableRaces, Race: &cp, Timestamp: startedAt})
	return true, nil
}

func (m *memStore) CompleteRace(raceID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.races[raceID]
	if !ok {
		return false, apperrors.ErrNotFound
	}
	if !r.IsActive() {
		return false, nil
	}
	now := time.Now()
	r.Status = entity.RaceStatusCompleted
	r.FinishedAt = &now
	r.UpdatedAt = now
	cp := *r
	m.broadcastLocked(raceID, ChangeEvent{Op: OpUpdate, Table: TableRaces, Race: &cp, Timestamp: now})
	return true, nil
}

func (m *memStore) CreateParticipant(p *entity.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byUser, ok := m.participants[p.RaceID]
	if !ok {
		byUser = make(map[string]*entity.Participant)
		m.participants[p.RaceID] = byUser
	}
	if _, exists := byUser[p.UserID]; exists {
		return repository.ErrDuplicateParticipant
	}
	saved := *p
	byUser[p.UserID] = &saved
	cp := saved
	m.broadcastLocked(p.RaceID, ChangeEvent{Op: OpInsert, Table: TableParticipants, Participant: &cp, Timestamp: saved.UpdatedAt})
	return nil
}

func (m *memStore) ListParticipants(raceID string) ([]entity.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := make([]entity.Participant, 0, len(m.participants[raceID]))
	for _, p := range m.participants[raceID] {
		list = append(list, *p)
	}
	return list, nil
}

func (m *memStore) UpdateParticipant(raceID, userID string, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[raceID][userID]
	if !ok {
		return apperrors.ErrNotFound
	}
	applyParticipantFields(p, fields)
	cp := *p
	m.broadcastLocked(raceID, ChangeEvent{Op: OpUpdate, Table: TableParticipants, Participant: &cp, Timestamp: p.UpdatedAt})
	return nil
}

func (m *memStore) DeleteParticipant(raceID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[raceID][userID]
	if !ok {
		return apperrors.ErrNotFound
	}
	delete(m.participants[raceID], userID)
	cp := *p
	m.broadcastLocked(raceID, ChangeEvent{Op: OpDelete, Table: TableParticipants, Participant: &cp, Timestamp: time.Now()})
	return nil
}

func (m *memStore) Subscribe(ctx context.Context, raceID string) (<-chan ChangeEvent, error) {
	ch := make(chan ChangeEvent, 256)
	m.mu.Lock()
	m.subs[raceID] = append(m.subs[raceID], ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		list := m.subs[raceID]
		for i, sub := range list {
			if sub == ch {
				m.subs[raceID] = append(list[:i], list[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func applyRaceFields(r *entity.Race, fields map[string]interface{}) {
	for key, value := range fields {
		switch key {
		case "status":
			r.Status = value.(string)
		case "started_at":
			t := value.(time.Time)
			r.StartedAt = &t
		case "finished_at":
			t := value.(time.Time)
			r.FinishedAt = &t
		case "updated_at":
			r.UpdatedAt = value.(time.Time)
		}
	}
}

func applyParticipantFields(p *entity.Participant, fields map[string]interface{}) {
	for key, value := range fields {
		switch key {
		case "progress":
			p.Progress = value.(int)
		case "wpm":
			p.WPM = value.(int)
		case "accuracy":
			p.Accuracy = value.(int)
		case "position":
			pos := value.(int)
			p.Position = &pos
		case "finished_at":
			t := value.(time.Time)
			p.FinishedAt = &t
		case "updated_at":
			p.UpdatedAt = value.(time.Time)
		}
	}
}
