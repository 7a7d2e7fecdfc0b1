package typing

import (
	"fmt"
	"math"
	"time"
)

// Metrics содержит показатели набора, пересчитываемые на каждое нажатие
type Metrics struct {
	Progress  int `json:"progress"`  // Процент набранного текста, 0-100
	Correct   int `json:"correct"`   // Количество совпавших символов
	Incorrect int `json:"incorrect"` // Количество несовпавших символов
	Accuracy  int `json:"accuracy"`  // Процент точности, 0-100
	WPM       int `json:"wpm"`       // Слов в минуту (5 символов = слово)
}

// ErrInputTooLong возвращается, когда набранный текст длиннее целевого.
// Вызывающая сторона обязана обрезать ввод до длины текста до вызова Compute.
var ErrInputTooLong = fmt.Errorf("typed input is longer than target text")

// Compute рассчитывает метрики для набранного префикса относительно целевого
// текста. Функция чистая и детерминированная: безопасно вызывать на каждое
// нажатие, включая быстрые вставки из буфера.
//
// Сравнение символов позиционное по рунам. Progress учитывает ВСЕ набранные
// символы, не только правильные. При elapsed <= 0 WPM равен нулю (никаких
// делений на ноль и Inf/NaN).
func Compute(typed, target string, elapsed time.Duration) (Metrics, error) {
	typedRunes := []rune(typed)
	targetRunes := []rune(target)

	if len(typedRunes) > len(targetRunes) {
		return Metrics{}, ErrInputTooLong
	}

	m := Metrics{Accuracy: 100}
	if len(targetRunes) == 0 {
		return m, nil
	}

	for i, r := range typedRunes {
		if r == targetRunes[i] {
			m.Correct++
		}
	}
	m.Incorrect = len(typedRunes) - m.Correct

	m.Progress = int(math.Round(float64(len(typedRunes)) / float64(len(targetRunes)) * 100))
	if m.Progress > 100 {
		m.Progress = 100
	}

	// Пустой ввод не штрафуется: точность 100 до первого нажатия
	if len(typedRunes) > 0 {
		m.Accuracy = int(math.Round(float64(m.Correct) / float64(len(typedRunes)) * 100))
	}

	if elapsed > 0 {
		minutes := elapsed.Minutes()
		words := float64(len(typedRunes)) / 5.0
		m.WPM = int(math.Round(words / minutes))
	}

	return m, nil
}
