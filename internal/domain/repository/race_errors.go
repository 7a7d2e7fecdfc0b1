package repository

import "errors"

var (
	// ErrJoinCodeTaken означает, что код приглашения уже занят активной гонкой.
	// Координатор реагирует генерацией нового кода и повторной попыткой.
	ErrJoinCodeTaken = errors.New("join code already taken by an active race")
	// ErrDuplicateParticipant означает, что пользователь уже есть в этой гонке.
	ErrDuplicateParticipant = errors.New("user already joined this race")
)
