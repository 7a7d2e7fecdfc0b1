package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	"github.com/razi112/fynzatyp/internal/handler/dto"
	"github.com/razi112/fynzatyp/internal/service"
	"github.com/razi112/fynzatyp/internal/typing"
	"github.com/razi112/fynzatyp/internal/websocket"
)

// WSHandler обрабатывает WebSocket соединения: гонки и одиночные
// тренировки в реальном времени
type WSHandler struct {
	hub            *websocket.Hub
	manager        *websocket.Manager
	raceService    *service.RaceService
	sessionService *service.SessionService
}

// NewWSHandler создает новый обработчик WebSocket
func NewWSHandler(
	hub *websocket.Hub,
	manager *websocket.Manager,
	raceService *service.RaceService,
	sessionService *service.SessionService,
) *WSHandler {
	handler := &WSHandler{
		hub:            hub,
		manager:        manager,
		raceService:    raceService,
		sessionService: sessionService,
	}

	// Обработчики сообщений регистрируются один раз при создании
	handler.registerMessageHandlers()

	// Разрыв соединения снимает координатор гонки: участие в гонке
	// сохраняется в БД, переподключение восстановит картину через join
	hub.SetDisconnectHandler(raceService.Detach)

	return handler
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Доступ по происхождению ограничивает reverse proxy,
		// здесь пропускаем и браузерные, и нативные клиенты
		return true
	},
	EnableCompression: true,
}

// HandleConnection обрабатывает входящее WebSocket соединение.
// Аутентификация уже пройдена в middleware (токен в query-параметре).
func (h *WSHandler) HandleConnection(c *gin.Context) {
	userID := c.MustGet("user_id").(string)
	displayName := c.GetString("display_name")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WSHandler] Ошибка апгрейда соединения для %s: %v", userID, err)
		return
	}

	client := websocket.NewClient(h.hub, conn, userID, displayName)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.manager)
}

// forwardRaceUpdates пересылает снапшоты гонки пользователю как race:update.
// Завершается, когда координатор закрывает канал.
func (h *WSHandler) forwardRaceUpdates(userID string) {
	updates, err := h.raceService.Updates(userID)
	if err != nil {
		log.Printf("[WSHandler] Лента гонки недоступна для %s: %v", userID, err)
		return
	}
	go func() {
		for snapshot := range updates {
			if err := h.manager.SendEventToUser(userID, websocket.RaceUpdate, dto.NewRaceSnapshotResponse(snapshot)); err != nil {
				// Клиент оффлайн: снапшоты продолжают копиться в состоянии,
				// пропущенные кадры не критичны
				continue
			}
		}
	}()
}

// registerMessageHandlers регистрирует обработчики для типов сообщений
func (h *WSHandler) registerMessageHandlers() {
	h.manager.RegisterHandler(websocket.RaceCreate, func(data json.RawMessage, client *websocket.Client) error {
		var req struct {
			Topic      string `json:"topic"`
			Difficulty string `json:"difficulty"`
			MaxPlayers int    `json:"max_players"`
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return err
		}
		difficulty, err := typing.ParseDifficulty(req.Difficulty)
		if err != nil {
			return err
		}

		snapshot, err := h.raceService.CreateRace(context.Background(), client.UserID, client.DisplayName, req.Topic, difficulty, req.MaxPlayers)
		if err != nil {
			return err
		}

		h.forwardRaceUpdates(client.UserID)
		return h.manager.SendEventToUser(client.UserID, websocket.RaceUpdate, dto.NewRaceSnapshotResponse(snapshot))
	})

	h.manager.RegisterHandler(websocket.RaceJoin, func(data json.RawMessage, client *websocket.Client) error {
		var req struct {
			Code string `json:"code"`
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return err
		}

		snapshot, err := h.raceService.JoinRace(context.Background(), client.UserID, client.DisplayName, req.Code)
		if err != nil {
			return err
		}

		h.forwardRaceUpdates(client.UserID)
		return h.manager.SendEventToUser(client.UserID, websocket.RaceUpdate, dto.NewRaceSnapshotResponse(snapshot))
	})

	h.manager.RegisterHandler(websocket.RaceStart, func(data json.RawMessage, client *websocket.Client) error {
		return h.raceService.StartRace(context.Background(), client.UserID)
	})

	h.manager.RegisterHandler(websocket.RaceInput, func(data json.RawMessage, client *websocket.Client) error {
		var req struct {
			Input string `json:"input"`
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return err
		}
		_, err := h.raceService.ApplyInput(context.Background(), client.UserID, req.Input)
		return err
	})

	h.manager.RegisterHandler(websocket.RaceLeave, func(data json.RawMessage, client *websocket.Client) error {
		return h.raceService.LeaveRace(context.Background(), client.UserID)
	})

	h.manager.RegisterHandler(websocket.SessionStart, func(data json.RawMessage, client *websocket.Client) error {
		var req struct {
			Topic      string `json:"topic"`
			Difficulty string `json:"difficulty"`
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return err
		}
		difficulty, err := typing.ParseDifficulty(req.Difficulty)
		if err != nil {
			return err
		}

		started, err := h.sessionService.StartSession(client.UserID, req.Topic, difficulty)
		if err != nil {
			return err
		}
		return h.manager.SendEventToUser(client.UserID, websocket.SessionUpdate, started)
	})

	h.manager.RegisterHandler(websocket.SessionInput, func(data json.RawMessage, client *websocket.Client) error {
		var req struct {
			SessionID string `json:"session_id"`
			Input     string `json:"input"`
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return err
		}

		metrics, state, err := h.sessionService.ApplyInput(req.SessionID, client.UserID, req.Input)
		if err != nil {
			return err
		}
		return h.manager.SendEventToUser(client.UserID, websocket.SessionUpdate, gin.H{
			"session_id": req.SessionID,
			"metrics":    metrics,
			"state":      state,
		})
	})
}
