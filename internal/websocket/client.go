package websocket

import (
	"bytes"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Время, которое разрешено писать сообщение клиенту
	writeWait = 10 * time.Second

	// Время, которое разрешено клиенту читать следующее сообщение
	pongWait = 30 * time.Second

	// Периодичность отправки ping-сообщений клиенту
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер входящего сообщения. Ввод гонки - полный
	// набранный текст, поэтому лимит заметно больше обычного.
	maxMessageSize = 8192

	// Размер буфера канала отправки сообщений клиенту
	clientBufferSize = 128
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// Client является посредником между WebSocket соединением и хабом
type Client struct {
	// ID пользователя
	UserID string

	// Отображаемое имя пользователя
	DisplayName string

	// Уникальный ID для каждого соединения
	ConnectionID string

	hub  *Hub
	conn *websocket.Conn

	// Буферизованный канал для исходящих сообщений
	send chan []byte
}

// NewClient создает нового клиента
func NewClient(hub *Hub, conn *websocket.Conn, userID, displayName string) *Client {
	return &Client{
		UserID:       userID,
		DisplayName:  displayName,
		ConnectionID: uuid.New().String(),
		hub:          hub,
		conn:         conn,
		send:         make(chan []byte, clientBufferSize),
	}
}

// ReadPump читает сообщения из WebSocket соединения и передает их
// менеджеру. Запускается в отдельной горутине на соединение.
func (c *Client) ReadPump(manager *Manager) {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WebSocket] Неожиданное закрытие соединения %s: %v", c.ConnectionID, err)
			}
			break
		}
		message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
		if err := manager.HandleMessage(message, c); err != nil {
			break
		}
	}
}

// WritePump пишет сообщения из канала send в WebSocket соединение
// и поддерживает его ping-сообщениями
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Хаб закрыл канал клиента
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
