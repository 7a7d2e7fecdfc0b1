package racemanager

import (
	"fmt"

	"github.com/razi112/fynzatyp/internal/domain/entity"
)

// ValidateTransition проверяет переход статуса гонки. Разрешены только
// переходы на следующий статус жизненного цикла: waiting -> countdown ->
// in_progress -> completed. Откаты и перепрыгивания запрещены.
func ValidateTransition(from, to string) error {
	fromRank := entity.StatusRank(from)
	toRank := entity.StatusRank(to)
	if fromRank < 0 {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, from)
	}
	if toRank < 0 {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if toRank != fromRank+1 {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// CanStart проверяет право запуска гонки: только хост, только из waiting
// и только при достаточном числе участников.
func CanStart(race *entity.Race, userID string, playerCount, minPlayers int) error {
	if race.HostUserID != userID {
		return ErrNotHost
	}
	if err := ValidateTransition(race.Status, entity.RaceStatusCountdown); err != nil {
		return err
	}
	if playerCount < minPlayers {
		return ErrNotEnoughPlayers
	}
	return nil
}

// CanJoin проверяет возможность присоединения: гонка принимает участников
// только в статусе waiting и пока есть свободные места.
func CanJoin(race *entity.Race, playerCount int) error {
	if !race.IsWaiting() {
		return ErrRaceNotJoinable
	}
	if playerCount >= race.MaxPlayers {
		return ErrRaceFull
	}
	return nil
}
