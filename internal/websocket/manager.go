package websocket

import (
	"encoding/json"
	"fmt"
	"log"
)

// Типы сообщений протокола гонок и одиночных сессий
const (
	RaceCreate = "race:create"
	RaceJoin   = "race:join"
	RaceStart  = "race:start"
	RaceInput  = "race:input"
	RaceLeave  = "race:leave"
	RaceUpdate = "race:update"

	SessionStart  = "session:start"
	SessionInput  = "session:input"
	SessionUpdate = "session:update"

	ServerError = "server:error"
)

// Event представляет структуру WebSocket-сообщения
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Manager обрабатывает WebSocket сообщения
type Manager struct {
	hub            *Hub
	messageHandler map[string]func(data json.RawMessage, client *Client) error
}

// NewManager создает новый менеджер WebSocket
func NewManager(hub *Hub) *Manager {
	return &Manager{
		hub:            hub,
		messageHandler: make(map[string]func(data json.RawMessage, client *Client) error),
	}
}

// RegisterHandler регистрирует обработчик для определенного типа сообщений
func (m *Manager) RegisterHandler(eventType string, handler func(data json.RawMessage, client *Client) error) {
	m.messageHandler[eventType] = handler
	log.Printf("[WebSocketManager] Зарегистрирован обработчик для сообщений типа: %s", eventType)
}

// HandleMessage обрабатывает входящее сообщение от клиента.
// Возвращает error, если обработка не удалась и соединение нужно закрыть.
func (m *Manager) HandleMessage(message []byte, client *Client) error {
	var event struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(message, &event); err != nil {
		log.Printf("[WebSocketManager] Ошибка разбора сообщения от %s: %v", client.UserID, err)
		m.SendErrorToClient(client, "invalid_message_format", "Invalid JSON format")
		return err
	}

	handler, ok := m.messageHandler[event.Type]
	if !ok {
		m.SendErrorToClient(client, "unknown_message_type", fmt.Sprintf("Unknown message type: %s", event.Type))
		return nil
	}

	if err := handler(event.Data, client); err != nil {
		// Ошибки бизнес-логики не закрывают соединение: клиент получает
		// server:error и продолжает работу
		m.SendErrorToClient(client, "operation_failed", err.Error())
	}
	return nil
}

// SendErrorToClient отправляет стандартизированное сообщение об ошибке клиенту
func (m *Manager) SendErrorToClient(client *Client, code string, message string) {
	errorEvent := Event{
		Type: ServerError,
		Data: map[string]string{
			"code":    code,
			"message": message,
		},
	}
	if err := m.hub.SendJSONToUser(client.UserID, errorEvent); err != nil {
		log.Printf("[WebSocketManager] Ошибка отправки server:error клиенту %s: %v", client.UserID, err)
	}
}

// SendEventToUser отправляет событие конкретному пользователю
func (m *Manager) SendEventToUser(userID string, eventType string, data interface{}) error {
	return m.hub.SendJSONToUser(userID, Event{Type: eventType, Data: data})
}
