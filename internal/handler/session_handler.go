package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/razi112/fynzatyp/internal/pkg/errors"
	"github.com/razi112/fynzatyp/internal/service"
	"github.com/razi112/fynzatyp/internal/typing"
)

// SessionHandler обрабатывает REST-запросы одиночных тренировок
type SessionHandler struct {
	sessionService *service.SessionService
}

// NewSessionHandler создает новый обработчик тренировок
func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// StartSessionRequest представляет запрос на запуск тренировки
type StartSessionRequest struct {
	Topic      string `json:"topic" binding:"omitempty,max=30"`
	Difficulty string `json:"difficulty" binding:"required"`
}

// StartSession запускает одиночную тренировку
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	difficulty, err := typing.ParseDifficulty(req.Difficulty)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown difficulty level"})
		return
	}

	userID := c.MustGet("user_id").(string)

	started, err := h.sessionService.StartSession(userID, req.Topic, difficulty)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, started)
}

// SessionInputRequest представляет полный текущий ввод пользователя
type SessionInputRequest struct {
	Input string `json:"input"`
}

// ApplyInput принимает ввод пользователя и возвращает метрики
func (h *SessionHandler) ApplyInput(c *gin.Context) {
	var req SessionInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.MustGet("user_id").(string)
	sessionID := c.Param("id")

	metrics, state, err := h.sessionService.ApplyInput(sessionID, userID, req.Input)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"metrics": metrics, "state": state})
}

// GetResult возвращает итог тренировки
func (h *SessionHandler) GetResult(c *gin.Context) {
	userID := c.MustGet("user_id").(string)
	sessionID := c.Param("id")

	result, err := h.sessionService.Result(sessionID, userID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Abandon снимает незавершенную тренировку без сохранения результата
func (h *SessionHandler) Abandon(c *gin.Context) {
	userID := c.MustGet("user_id").(string)
	sessionID := c.Param("id")

	if err := h.sessionService.Abandon(sessionID, userID); err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "abandoned"})
}

// History возвращает сохраненные тренировки пользователя
func (h *SessionHandler) History(c *gin.Context) {
	userID := c.MustGet("user_id").(string)

	sessions, err := h.sessionService.History(userID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessions)
}

// handleSessionError переводит ошибки доменного слоя в HTTP-статусы
func (h *SessionHandler) handleSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Session belongs to another user"})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request parameters"})
	case errors.Is(err, typing.ErrSessionFinished):
		c.JSON(http.StatusConflict, gin.H{"error": "Session already finished"})
	case errors.Is(err, typing.ErrInputTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Input is longer than the target text"})
	default:
		log.Printf("[SessionHandler] Внутренняя ошибка: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
