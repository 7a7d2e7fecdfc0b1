package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/razi112/fynzatyp/internal/handler/dto"
	apperrors "github.com/razi112/fynzatyp/internal/pkg/errors"
	"github.com/razi112/fynzatyp/internal/service"
	"github.com/razi112/fynzatyp/internal/service/racemanager"
	"github.com/razi112/fynzatyp/internal/typing"
)

// RaceHandler обрабатывает REST-запросы, связанные с гонками
type RaceHandler struct {
	raceService   *service.RaceService
	inviteService service.InviteService
}

// NewRaceHandler создает новый обработчик гонок
func NewRaceHandler(raceService *service.RaceService, inviteService service.InviteService) *RaceHandler {
	return &RaceHandler{
		raceService:   raceService,
		inviteService: inviteService,
	}
}

// CreateRaceRequest представляет запрос на создание гонки
type CreateRaceRequest struct {
	Topic      string `json:"topic" binding:"omitempty,max=30"`
	Difficulty string `json:"difficulty" binding:"required"`
	MaxPlayers int    `json:"max_players" binding:"omitempty,min=2,max=10"`
}

// CreateRace обрабатывает запрос на создание гонки
func (h *RaceHandler) CreateRace(c *gin.Context) {
	var req CreateRaceRequest
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
	displayName := c.GetString("display_name")

	snapshot, err := h.raceService.CreateRace(c, userID, displayName, req.Topic, difficulty, req.MaxPlayers)
	if err != nil {
		h.handleRaceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewRaceSnapshotResponse(snapshot))
}

// JoinRaceRequest представляет запрос на присоединение к гонке
type JoinRaceRequest struct {
	Code string `json:"code" binding:"required,min=4,max=12"`
}

// JoinRace присоединяет пользователя к гонке по коду приглашения
func (h *RaceHandler) JoinRace(c *gin.Context) {
	var req JoinRaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.MustGet("user_id").(string)
	displayName := c.GetString("display_name")

	snapshot, err := h.raceService.JoinRace(c, userID, displayName, req.Code)
	if err != nil {
		h.handleRaceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewRaceSnapshotResponse(snapshot))
}

// StartRace запускает обратный отсчет гонки. Доступно только хосту.
func (h *RaceHandler) StartRace(c *gin.Context) {
	userID := c.MustGet("user_id").(string)

	if err := h.raceService.StartRace(c, userID); err != nil {
		h.handleRaceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "countdown"})
}

// LeaveRace выводит пользователя из текущей гонки
func (h *RaceHandler) LeaveRace(c *gin.Context) {
	userID := c.MustGet("user_id").(string)

	if err := h.raceService.LeaveRace(c, userID); err != nil {
		h.handleRaceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "left"})
}

// GetCurrentRace возвращает снапшот гонки, в которой состоит пользователь
func (h *RaceHandler) GetCurrentRace(c *gin.Context) {
	userID := c.MustGet("user_id").(string)

	snapshot, err := h.raceService.Snapshot(userID)
	if err != nil {
		h.handleRaceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewRaceSnapshotResponse(snapshot))
}

// GetRace возвращает гонку по ID
func (h *RaceHandler) GetRace(c *gin.Context) {
	race, err := h.raceService.GetRace(c.Param("id"))
	if err != nil {
		h.handleRaceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewRaceResponse(race))
}

// ListRaces возвращает список гонок с пагинацией
func (h *RaceHandler) ListRaces(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	races, err := h.raceService.ListRaces(limit, offset)
	if err != nil {
		h.handleRaceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewListRaceResponse(races))
}

// InviteRequest представляет запрос на отправку приглашения по email
type InviteRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// Invite отправляет приглашение в текущую гонку пользователя по email
func (h *RaceHandler) Invite(c *gin.Context) {
	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.MustGet("user_id").(string)
	displayName := c.GetString("display_name")

	snapshot, err := h.raceService.Snapshot(userID)
	if err != nil {
		h.handleRaceError(c, err)
		return
	}

	if err := h.inviteService.SendRaceInvite(c, req.Email, displayName, snapshot.Race.JoinCode); err != nil {
		log.Printf("[RaceHandler] Ошибка отправки приглашения на %s: %v", req.Email, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to send invite"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

// handleRaceError переводит ошибки доменного слоя в HTTP-статусы
func (h *RaceHandler) handleRaceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Race not found"})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request parameters"})
	case errors.Is(err, racemanager.ErrRaceNotJoinable):
		c.JSON(http.StatusNotFound, gin.H{"error": "No joinable race with this code"})
	case errors.Is(err, racemanager.ErrRaceFull):
		c.JSON(http.StatusConflict, gin.H{"error": "Race is full"})
	case errors.Is(err, racemanager.ErrAlreadyJoined):
		c.JSON(http.StatusConflict, gin.H{"error": "Already joined a race"})
	case errors.Is(err, racemanager.ErrNotHost):
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the host can start the race"})
	case errors.Is(err, racemanager.ErrNotEnoughPlayers):
		c.JSON(http.StatusConflict, gin.H{"error": "Not enough players to start"})
	case errors.Is(err, racemanager.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "Race cannot be started in its current state"})
	case errors.Is(err, racemanager.ErrNotInRace):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not in a race"})
	case errors.Is(err, racemanager.ErrRaceNotStarted):
		c.JSON(http.StatusConflict, gin.H{"error": "Race is not in progress"})
	case errors.Is(err, racemanager.ErrAlreadyFinished):
		c.JSON(http.StatusConflict, gin.H{"error": "Already finished this race"})
	default:
		log.Printf("[RaceHandler] Внутренняя ошибка: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
