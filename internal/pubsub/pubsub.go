package pubsub

import (
	"context"
	"log"
	"sync"
)

// Provider определяет интерфейс для провайдеров публикации/подписки.
// Через него лента изменений гонки доставляется всем подписчикам.
type Provider interface {
	// Publish публикует сообщение в указанный канал
	Publish(channel string, message []byte) error

	// Subscribe подписывается на указанный канал и возвращает канал для
	// сообщений. Канал закрывается при отмене контекста.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)

	// Close закрывает все соединения и освобождает ресурсы
	Close() error
}

// LocalPubSub реализует Provider для одиночного режима работы: сообщения
// разлетаются подписчикам внутри процесса без внешнего брокера. Для
// нескольких экземпляров сервера используется RedisPubSub.
type LocalPubSub struct {
	mu     sync.Mutex
	subs   map[string][]chan []byte
	closed bool
}

// NewLocalPubSub создает провайдер для одиночного режима
func NewLocalPubSub() *LocalPubSub {
	return &LocalPubSub{subs: make(map[string][]chan []byte)}
}

// Publish рассылает сообщение всем локальным подписчикам канала
func (p *LocalPubSub) Publish(channel string, message []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	for _, sub := range p.subs[channel] {
		select {
		case sub <- message:
		default:
			log.Printf("[LocalPubSub] Буфер подписчика канала '%s' переполнен, сообщение отброшено", channel)
		}
	}
	return nil
}

// Subscribe регистрирует локального подписчика канала
func (p *LocalPubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 256)
	p.mu.Lock()
	p.subs[channel] = append(p.subs[channel], ch)
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		list := p.subs[channel]
		for i, sub := range list {
			if sub == ch {
				p.subs[channel] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(p.subs[channel]) == 0 {
			delete(p.subs, channel)
		}
		p.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

// Close отключает провайдер: дальнейшие публикации игнорируются
func (p *LocalPubSub) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
