package racemanager

import "errors"

// Ошибки бизнес-логики гонок. Хендлеры транслируют их в HTTP-статусы.
var (
	// ErrNotHost возвращается при попытке запуска гонки не хостом
	ErrNotHost = errors.New("only the host can start the race")

	// ErrNotEnoughPlayers возвращается при старте гонки с одним участником
	ErrNotEnoughPlayers = errors.New("at least two players are required to start")

	// ErrRaceFull возвращается при присоединении к заполненной гонке
	ErrRaceFull = errors.New("race is full")

	// ErrAlreadyJoined возвращается при повторном присоединении к той же гонке
	ErrAlreadyJoined = errors.New("user already joined this race")

	// ErrRaceNotJoinable возвращается, когда код не найден или гонка уже
	// началась либо завершилась
	ErrRaceNotJoinable = errors.New("race is not accepting new participants")

	// ErrJoinCodeGeneration возвращается, когда не удалось подобрать
	// уникальный код приглашения за отведенное число попыток
	ErrJoinCodeGeneration = errors.New("could not generate a unique join code")

	// ErrNotInRace возвращается при операции над гонкой без присоединения
	ErrNotInRace = errors.New("coordinator is not attached to a race")

	// ErrRaceNotStarted возвращается при вводе до перехода в in_progress
	ErrRaceNotStarted = errors.New("race is not in progress")

	// ErrAlreadyFinished возвращается при вводе после собственного финиша
	ErrAlreadyFinished = errors.New("participant already finished")

	// ErrInvalidTransition возвращается при нарушении порядка статусов
	ErrInvalidTransition = errors.New("invalid race status transition")
)
