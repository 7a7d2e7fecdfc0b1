package dto

import (
	"time"

	"github.com/razi112/fynzatyp/internal/domain/entity"
	"github.com/razi112/fynzatyp/internal/service/racemanager"
)

// RaceResponse представляет гонку в ответе API
type RaceResponse struct {
	ID         string     `json:"id"`
	HostUserID string     `json:"host_user_id"`
	JoinCode   string     `json:"join_code"`
	Status     string     `json:"status"`
	RaceText   string     `json:"race_text"`
	TextTopic  string     `json:"text_topic"`
	Difficulty string     `json:"difficulty"`
	MaxPlayers int        `json:"max_players"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// ParticipantResponse представляет участника гонки в ответе API
type ParticipantResponse struct {
	UserID      string     `json:"user_id"`
	DisplayName string     `json:"display_name"`
	Progress    int        `json:"progress"`
	WPM         int        `json:"wpm"`
	Accuracy    int        `json:"accuracy"`
	Position    *int       `json:"position,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// RaceSnapshotResponse - гонка вместе с участниками, как ее видит клиент
type RaceSnapshotResponse struct {
	Race         RaceResponse          `json:"race"`
	Participants []ParticipantResponse `json:"participants"`
}

// NewRaceResponse преобразует сущность гонки в ответ API
func NewRaceResponse(race *entity.Race) RaceResponse {
	return RaceResponse{
		ID:         race.ID,
		HostUserID: race.HostUserID,
		JoinCode:   race.JoinCode,
		Status:     race.Status,
		RaceText:   race.RaceText,
		TextTopic:  race.TextTopic,
		Difficulty: race.Difficulty,
		MaxPlayers: race.MaxPlayers,
		CreatedAt:  race.CreatedAt,
		StartedAt:  race.StartedAt,
		FinishedAt: race.FinishedAt,
	}
}

// NewParticipantResponse преобразует сущность участника в ответ API
func NewParticipantResponse(p *entity.Participant) ParticipantResponse {
	return ParticipantResponse{
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		Progress:    p.Progress,
		WPM:         p.WPM,
		Accuracy:    p.Accuracy,
		Position:    p.Position,
		FinishedAt:  p.FinishedAt,
	}
}

// NewRaceSnapshotResponse преобразует снапшот гонки в ответ API
func NewRaceSnapshotResponse(snapshot racemanager.Snapshot) RaceSnapshotResponse {
	participants := make([]ParticipantResponse, 0, len(snapshot.Participants))
	for i := range snapshot.Participants {
		participants = append(participants, NewParticipantResponse(&snapshot.Participants[i]))
	}
	return RaceSnapshotResponse{
		Race:         NewRaceResponse(&snapshot.Race),
		Participants: participants,
	}
}

// NewListRaceResponse преобразует список гонок в ответ API
func NewListRaceResponse(races []entity.Race) []RaceResponse {
	out := make([]RaceResponse, 0, len(races))
	for i := range races {
		out = append(out, NewRaceResponse(&races[i]))
	}
	return out
}
