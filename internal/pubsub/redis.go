package pubsub

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisPubSub реализует Provider поверх Redis Pub/Sub. Используется при
// нескольких экземплярах сервера: запись одного экземпляра долетает до
// подписчиков на остальных.
type RedisPubSub struct {
	client redis.UniversalClient
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRedisPubSub создает Redis Pub/Sub провайдер, используя существующий UniversalClient
func NewRedisPubSub(client redis.UniversalClient) (*RedisPubSub, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil for RedisPubSub")
	}

	// Проверяем соединение клиента перед использованием
	ctx, cancelCheck := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelCheck()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("provided redis client failed ping check: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	return &RedisPubSub{client: client, ctx: runCtx, cancel: cancel}, nil
}

// Publish публикует сообщение в указанный канал
func (p *RedisPubSub) Publish(channel string, message []byte) error {
	if err := p.client.Publish(p.ctx, channel, message).Err(); err != nil {
		log.Printf("[RedisPubSub] Ошибка публикации в канал '%s': %v", channel, err)
		return fmt.Errorf("failed to publish to Redis channel %s: %w", channel, err)
	}
	return nil
}

// Subscribe подписывается на указанный канал Redis. У каждого подписчика
// своя подписка: закрытие одной не задевает остальных.
func (p *RedisPubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	sub := p.client.Subscribe(p.ctx, channel)

	// Ждем подтверждения подписки
	if _, err := sub.Receive(p.ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to Redis channel %s: %w", channel, err)
	}

	msgCh := make(chan []byte, 256)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			sub.Close()
			close(msgCh)
		}()

		redisCh := sub.Channel()
		for {
			select {
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				select {
				case msgCh <- []byte(msg.Payload):
				default:
					log.Printf("[RedisPubSub] Буфер подписчика канала '%s' переполнен, сообщение отброшено", channel)
				}
			case <-ctx.Done():
				return
			case <-p.ctx.Done():
				return
			}
		}
	}()
	return msgCh, nil
}

// Close останавливает все подписки провайдера
func (p *RedisPubSub) Close() error {
	p.cancel()
	p.wg.Wait()
	log.Println("[RedisPubSub] Провайдер остановлен")
	return nil
}
