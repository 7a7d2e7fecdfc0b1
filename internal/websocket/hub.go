package websocket

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// Hub хранит активные соединения и рассылает им сообщения.
// На пользователя допускается одно соединение: новое вытесняет старое.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client // UserID -> Client

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	// onDisconnect вызывается после снятия клиента с хаба
	onDisconnect func(userID string)
}

// NewHub создает новый хаб
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// SetDisconnectHandler задает обработчик отключения клиента
func (h *Hub) SetDisconnectHandler(fn func(userID string)) {
	h.onDisconnect = fn
}

// Run обрабатывает регистрацию и снятие клиентов. Запускается один раз
// в отдельной горутине.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[client.UserID]; ok {
				close(old.send)
				log.Printf("[Hub] Старое соединение пользователя %s вытеснено новым", client.UserID)
			}
			h.clients[client.UserID] = client
			h.mu.Unlock()
			log.Printf("[Hub] Клиент %s подключен (connection=%s)", client.UserID, client.ConnectionID)

		case client := <-h.unregister:
			h.mu.Lock()
			current, ok := h.clients[client.UserID]
			if ok && current == client {
				delete(h.clients, client.UserID)
				close(client.send)
			}
			h.mu.Unlock()
			if ok && current == client {
				log.Printf("[Hub] Клиент %s отключен", client.UserID)
				if h.onDisconnect != nil {
					h.onDisconnect(client.UserID)
				}
			}

		case <-h.done:
			h.mu.Lock()
			for _, client := range h.clients {
				close(client.send)
			}
			h.clients = make(map[string]*Client)
			h.mu.Unlock()
			return
		}
	}
}

// Register ставит клиента на учет в хабе
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Stop останавливает хаб и закрывает все клиентские каналы
func (h *Hub) Stop() {
	close(h.done)
}

// SendToUser отправляет сообщение конкретному пользователю.
// Возвращает true, если клиент найден и сообщение поставлено в очередь.
// Отправка идет под блокировкой: Run закрывает канал вытесняемого клиента
// под той же блокировкой, посылка в закрытый канал исключена.
func (h *Hub) SendToUser(userID string, message []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[userID]
	if !ok {
		return false
	}
	select {
	case client.send <- message:
		return true
	default:
		log.Printf("[Hub] Буфер клиента %s переполнен, сообщение отброшено", userID)
		return false
	}
}

// SendJSONToUser сериализует и отправляет сообщение пользователю
func (h *Hub) SendJSONToUser(userID string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if !h.SendToUser(userID, data) {
		return fmt.Errorf("client %s not connected", userID)
	}
	return nil
}

// ClientCount возвращает число подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
