package typing

import (
	"fmt"
	"time"
)

// Difficulty представляет закрытый набор уровней сложности
type Difficulty int

const (
	DifficultyBeginner Difficulty = iota
	DifficultyIntermediate
	DifficultyAdvanced
	DifficultyExpert
)

// Profile содержит настройки уровня сложности: порог точности, ниже которого
// сессия считается проваленной, лимит времени (0 — без лимита) и множитель
// очков для рейтинга.
type Profile struct {
	AccuracyThreshold int           // Минимальная точность в процентах, 0 — без порога
	TimeLimit         time.Duration // 0 — без ограничения времени
	ScoreMultiplier   float64
	TextComplexity    string // simple, moderate, complex, challenging
}

// String возвращает строковое представление уровня сложности
func (d Difficulty) String() string {
	switch d {
	case DifficultyBeginner:
		return "beginner"
	case DifficultyIntermediate:
		return "intermediate"
	case DifficultyAdvanced:
		return "advanced"
	case DifficultyExpert:
		return "expert"
	default:
		return "unknown"
	}
}

// Valid проверяет, что значение входит в закрытый набор уровней
func (d Difficulty) Valid() bool {
	return d >= DifficultyBeginner && d <= DifficultyExpert
}

// Profile возвращает конфигурацию уровня сложности. Значения соответствуют
// настройкам тренажера: от "без давления" до "почти идеальная точность".
func (d Difficulty) Profile() Profile {
	switch d {
	case DifficultyBeginner:
		return Profile{AccuracyThreshold: 0, TimeLimit: 0, ScoreMultiplier: 1.0, TextComplexity: "simple"}
	case DifficultyIntermediate:
		return Profile{AccuracyThreshold: 70, TimeLimit: 120 * time.Second, ScoreMultiplier: 1.25, TextComplexity: "moderate"}
	case DifficultyAdvanced:
		return Profile{AccuracyThreshold: 85, TimeLimit: 60 * time.Second, ScoreMultiplier: 1.5, TextComplexity: "complex"}
	case DifficultyExpert:
		return Profile{AccuracyThreshold: 95, TimeLimit: 30 * time.Second, ScoreMultiplier: 2.0, TextComplexity: "challenging"}
	default:
		return Profile{}
	}
}

// ParseDifficulty разбирает строковое представление уровня сложности
func ParseDifficulty(s string) (Difficulty, error) {
	switch s {
	case "beginner":
		return DifficultyBeginner, nil
	case "intermediate":
		return DifficultyIntermediate, nil
	case "advanced":
		return DifficultyAdvanced, nil
	case "expert":
		return DifficultyExpert, nil
	default:
		return 0, fmt.Errorf("unknown difficulty: %q", s)
	}
}

// Difficulties возвращает все уровни в порядке возрастания сложности
func Difficulties() []Difficulty {
	return []Difficulty{DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced, DifficultyExpert}
}
