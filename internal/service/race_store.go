package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/razi112/fynzatyp/internal/domain/entity"
	"github.com/razi112/fynzatyp/internal/domain/repository"
	"github.com/razi112/fynzatyp/internal/pubsub"
	"github.com/razi112/fynzatyp/internal/service/racemanager"
)

// raceChangesChannel возвращает имя pub/sub канала ленты изменений гонки
func raceChangesChannel(raceID string) string {
	return fmt.Sprintf("race:%s:changes", raceID)
}

// PersistentRaceStore реализует racemanager.Store поверх Postgres и
// pub/sub провайдера: каждая успешная запись публикуется в ленту
// изменений гонки, откуда ее забирают координаторы всех клиентов.
type PersistentRaceStore struct {
	raceRepo        repository.RaceRepository
	participantRepo repository.ParticipantRepository
	provider        pubsub.Provider
}

// NewPersistentRaceStore создает хранилище гонок с лентой изменений
func NewPersistentRaceStore(
	raceRepo repository.RaceRepository,
	participantRepo repository.ParticipantRepository,
	provider pubsub.Provider,
) *PersistentRaceStore {
	return &PersistentRaceStore{
		raceRepo:        raceRepo,
		participantRepo: participantRepo,
		provider:        provider,
	}
}

func (s *PersistentRaceStore) publish(raceID string, ev racemanager.ChangeEvent) {
	ev.Timestamp = time.Now()
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[RaceStore] Ошибка сериализации события гонки %s: %v", raceID, err)
		return
	}
	// Ошибка публикации не откатывает запись: хранилище остается источником
	// истины, подписчики дотянут состояние при следующем событии
	if err := s.provider.Publish(raceChangesChannel(raceID), data); err != nil {
		log.Printf("[RaceStore] Ошибка публикации события гонки %s: %v", raceID, err)
	}
}

// CreateRace сохраняет гонку и публикует insert-событие
func (s *PersistentRaceStore) CreateRace(race *entity.Race) error {
	if err := s.raceRepo.Create(race); err != nil {
		return err
	}
	s.publish(race.ID, racemanager.ChangeEvent{
		Op:    racemanager.OpInsert,
		Table: racemanager.TableRaces,
		Race:  race,
	})
	return nil
}

// GetRace возвращает гонку по ID
func (s *PersistentRaceStore) GetRace(id string) (*entity.Race, error) {
	return s.raceRepo.GetByID(id)
}

// FindJoinableByCode ищет ожидающую гонку по коду приглашения
func (s *PersistentRaceStore) FindJoinableByCode(code string) (*entity.Race, error) {
	return s.raceRepo.FindJoinableByCode(code)
}

// UpdateRace обновляет поля гонки и публикует итоговую строку
func (s *PersistentRaceStore) UpdateRace(raceID string, fields map[string]interface{}) error {
	if err := s.raceRepo.UpdateFields(raceID, fields); err != nil {
		return err
	}
	race, err := s.raceRepo.GetByID(raceID)
	if err != nil {
		return err
	}
	s.publish(raceID, racemanager.ChangeEvent{
		Op:    racemanager.OpUpdate,
		Table: racemanager.TableRaces,
		Race:  race,
	})
	return nil
}

// StartRace условно запускает гонку. Переход пишут и хост, и страховочные
// таймеры остальных участников: событие публикует только первый успевший.
func (s *PersistentRaceStore) StartRace(raceID string, startedAt time.Time) (bool, error) {
	started, err := s.raceRepo.StartRace(raceID, startedAt)
	if err != nil || !started {
		return started, err
	}
	race, err := s.raceRepo.GetByID(raceID)
	if err != nil {
		return true, err
	}
	s.publish(raceID, racemanager.ChangeEvent{
		Op:    racemanager.OpUpdate,
		Table: racemanager.TableRaces,
		Race:  race,
	})
	return true, nil
}

// CompleteRace идемпотентно завершает гонку. Событие публикуется только
// при реальном переходе, повторные вызовы молча возвращают false.
func (s *PersistentRaceStore) CompleteRace(raceID string) (bool, error) {
	completed, err := s.raceRepo.CompleteStalled(raceID)
	if err != nil || !completed {
		return completed, err
	}
	race, err := s.raceRepo.GetByID(raceID)
	if err != nil {
		return true, err
	}
	s.publish(raceID, racemanager.ChangeEvent{
		Op:    racemanager.OpUpdate,
		Table: racemanager.TableRaces,
		Race:  race,
	})
	return true, nil
}

// CreateParticipant добавляет участника и публикует insert-событие
func (s *PersistentRaceStore) CreateParticipant(p *entity.Participant) error {
	if err := s.participantRepo.Create(p); err != nil {
		return err
	}
	s.publish(p.RaceID, racemanager.ChangeEvent{
		Op:          racemanager.OpInsert,
		Table:       racemanager.TableParticipants,
		Participant: p,
	})
	return nil
}

// ListParticipants возвращает участников гонки
func (s *PersistentRaceStore) ListParticipants(raceID string) ([]entity.Participant, error) {
	return s.participantRepo.ListByRace(raceID)
}

// UpdateParticipant обновляет поля участника и публикует итоговую строку.
// Горячий путь гонки: вызывается на каждое нажатие клавиши.
func (s *PersistentRaceStore) UpdateParticipant(raceID, userID string, fields map[string]interface{}) error {
	if err := s.participantRepo.UpdateFields(raceID, userID, fields); err != nil {
		return err
	}
	participant, err := s.participantRepo.GetByRaceAndUser(raceID, userID)
	if err != nil {
		return err
	}
	s.publish(raceID, racemanager.ChangeEvent{
		Op:          racemanager.OpUpdate,
		Table:       racemanager.TableParticipants,
		Participant: participant,
	})
	return nil
}

// DeleteParticipant удаляет участника и публикует delete-событие с
// последним известным состоянием строки
func (s *PersistentRaceStore) DeleteParticipant(raceID, userID string) error {
	participant, err := s.participantRepo.GetByRaceAndUser(raceID, userID)
	if err != nil {
		return err
	}
	if err := s.participantRepo.Delete(raceID, userID); err != nil {
		return err
	}
	s.publish(raceID, racemanager.ChangeEvent{
		Op:          racemanager.OpDelete,
		Table:       racemanager.TableParticipants,
		Participant: participant,
	})
	return nil
}

// Subscribe возвращает ленту изменений гонки, декодируя сообщения
// провайдера в ChangeEvent
func (s *PersistentRaceStore) Subscribe(ctx context.Context, raceID string) (<-chan racemanager.ChangeEvent, error) {
	raw, err := s.provider.Subscribe(ctx, raceChangesChannel(raceID))
	if err != nil {
		return nil, err
	}

	events := make(chan racemanager.ChangeEvent, 256)
	go func() {
		defer close(events)
		for data := range raw {
			var ev racemanager.ChangeEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				log.Printf("[RaceStore] Ошибка десериализации события гонки %s: %v", raceID, err)
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}
