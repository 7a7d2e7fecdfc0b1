package racemanager

import (
	"sort"
	"sync"

	"github.com/razi112/fynzatyp/internal/domain/entity"
)

// Snapshot - неизменяемый срез состояния гонки для отправки клиенту
type Snapshot struct {
	Race         entity.Race          `json:"race"`
	Participants []entity.Participant `json:"participants"`
}

// RaceState - локальная картина гонки одного клиента: снапшот плюс
// свертка событий ленты изменений. Клиенты получают события в разном
// порядке, поэтому свертка терпима к дублям, опозданиям и перестановкам:
// статус гонки монотонен, прогресс участника не убывает, финиш -
// защелка, а позиции ремонтируются до плотного префикса 1..k.
type RaceState struct {
	mu sync.RWMutex

	race         entity.Race
	participants map[string]*entity.Participant
	// positions отображает занятые места на userID финишеров
	positions map[int]string
}

// NewRaceState строит локальную картину из снапшота хранилища
func NewRaceState(race entity.Race, participants []entity.Participant) *RaceState {
	s := &RaceState{
		race:         race,
		participants: make(map[string]*entity.Participant, len(participants)),
		positions:    make(map[int]string),
	}
	for i := range participants {
		p := participants[i]
		s.participants[p.UserID] = &p
	}
	// Позиции из снапшота ремонтируются в порядке финиша: ранние финишеры
	// сохраняют заявленные места при коллизиях
	finished := make([]*entity.Participant, 0, len(participants))
	for _, p := range s.participants {
		if p.HasFinished() {
			finished = append(finished, p)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		if !finished[i].FinishedAt.Equal(*finished[j].FinishedAt) {
			return finished[i].FinishedAt.Before(*finished[j].FinishedAt)
		}
		return finished[i].UserID < finished[j].UserID
	})
	for _, p := range finished {
		desired := 0
		if p.Position != nil {
			desired = *p.Position
		}
		assigned := s.claimLocked(p.UserID, desired)
		p.Position = &assigned
	}
	return s
}

// Apply сворачивает событие ленты в локальную картину.
// Возвращает true, если картина изменилась.
func (s *RaceState) Apply(ev ChangeEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Table {
	case TableRaces:
		return s.applyRaceLocked(ev)
	case TableParticipants:
		return s.applyParticipantLocked(ev)
	default:
		return false
	}
}

// applyRaceLocked применяет изменение гонки. Статус монотонен: событие с
// более ранним статусом жизненного цикла считается устаревшим.
func (s *RaceState) applyRaceLocked(ev ChangeEvent) bool {
	if ev.Race == nil || ev.Race.ID != s.race.ID || ev.Op == OpDelete {
		return false
	}
	curRank := entity.StatusRank(s.race.Status)
	newRank := entity.StatusRank(ev.Race.Status)
	if newRank < 0 || newRank < curRank {
		return false
	}
	if newRank == curRank && !ev.Race.UpdatedAt.After(s.race.UpdatedAt) {
		return false
	}
	s.race = *ev.Race
	return true
}

func (s *RaceState) applyParticipantLocked(ev ChangeEvent) bool {
	p := ev.Participant
	if p == nil || p.RaceID != s.race.ID {
		return false
	}

	if ev.Op == OpDelete {
		existing, ok := s.participants[p.UserID]
		if !ok {
			return false
		}
		if existing.Position != nil {
			delete(s.positions, *existing.Position)
		}
		delete(s.participants, p.UserID)
		s.compactLocked()
		return true
	}

	existing, ok := s.participants[p.UserID]
	if !ok {
		added := *p
		s.participants[p.UserID] = &added
		if added.HasFinished() {
			desired := 0
			if added.Position != nil {
				desired = *added.Position
			}
			assigned := s.claimLocked(added.UserID, desired)
			added.Position = &assigned
		}
		return true
	}

	// Финиш - защелка: после него записи того же участника игнорируются
	if existing.HasFinished() {
		return false
	}

	// Опоздавшее событие без финиша устарело; опоздавший финиш применяется,
	// иначе участник навсегда застрянет незавершенным
	stale := !p.UpdatedAt.After(existing.UpdatedAt)
	if stale && !p.HasFinished() {
		return false
	}

	merged := *p
	// Прогресс не убывает
	if merged.Progress < existing.Progress {
		merged.Progress = existing.Progress
	}
	if merged.HasFinished() {
		merged.Progress = 100
		desired := 0
		if merged.Position != nil {
			desired = *merged.Position
		}
		assigned := s.claimLocked(merged.UserID, desired)
		merged.Position = &assigned
	} else {
		merged.Position = nil
	}
	s.participants[p.UserID] = &merged
	return true
}

// claimLocked выдает финишеру место. Заявленное место сохраняется, если
// оно свободно и не выходит за число финишеров; иначе выдается наименьшее
// свободное. Первый доставленный финишер удерживает спорное место,
// опоздавший сдвигается - локальная картина всегда содержит плотный
// префикс мест 1..k.
func (s *RaceState) claimLocked(userID string, desired int) int {
	finishedCount := 0
	for _, p := range s.participants {
		if p.HasFinished() || p.UserID == userID {
			finishedCount++
		}
	}
	if desired >= 1 && desired <= finishedCount {
		if owner, taken := s.positions[desired]; !taken || owner == userID {
			s.positions[desired] = userID
			return desired
		}
	}
	for rank := 1; ; rank++ {
		if owner, taken := s.positions[rank]; !taken || owner == userID {
			s.positions[rank] = userID
			return rank
		}
	}
}

// compactLocked пересобирает места после удаления финишера, сохраняя
// относительный порядок оставшихся
func (s *RaceState) compactLocked() {
	finished := make([]*entity.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		if p.HasFinished() {
			finished = append(finished, p)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		pi, pj := positionOf(finished[i]), positionOf(finished[j])
		if pi != pj {
			return pi < pj
		}
		return finished[i].UserID < finished[j].UserID
	})
	s.positions = make(map[int]string, len(finished))
	for i, p := range finished {
		rank := i + 1
		p.Position = &rank
		s.positions[rank] = p.UserID
	}
}

func positionOf(p *entity.Participant) int {
	if p.Position == nil {
		return 0
	}
	return *p.Position
}

// Race возвращает копию текущей строки гонки
func (s *RaceState) Race() entity.Race {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.race
}

// Participant возвращает копию участника по userID
func (s *RaceState) Participant(userID string) (entity.Participant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[userID]
	if !ok {
		return entity.Participant{}, false
	}
	return *p, true
}

// ParticipantCount возвращает число участников в локальной картине
func (s *RaceState) ParticipantCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.participants)
}

// FinishedCount возвращает число финишеров в локальной картине.
// Позиция собственного финиша вычисляется как FinishedCount()+1.
func (s *RaceState) FinishedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.participants {
		if p.HasFinished() {
			n++
		}
	}
	return n
}

// AllFinished сообщает, финишировали ли все известные участники.
// Удаление участника тоже может сделать это истинным: покинувший гонку
// не должен вечно блокировать ее завершение.
func (s *RaceState) AllFinished() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.participants) == 0 {
		return false
	}
	for _, p := range s.participants {
		if !p.HasFinished() {
			return false
		}
	}
	return true
}

// Snapshot возвращает срез состояния: финишеры по местам, затем остальные
// по прогрессу
func (s *RaceState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]entity.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		list = append(list, *p)
	}
	sort.Slice(list, func(i, j int) bool {
		fi, fj := list[i].HasFinished(), list[j].HasFinished()
		if fi != fj {
			return fi
		}
		if fi {
			return positionOf(&list[i]) < positionOf(&list[j])
		}
		if list[i].Progress != list[j].Progress {
			return list[i].Progress > list[j].Progress
		}
		if list[i].WPM != list[j].WPM {
			return list[i].WPM > list[j].WPM
		}
		return list[i].UserID < list[j].UserID
	})
	return Snapshot{Race: s.race, Participants: list}
}
