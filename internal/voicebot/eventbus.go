package voicebot

import (
	"sync"
)

// EventBus 会话事件总线
type EventBus interface {
	Publish(event Event)
	Subscribe(eventType EventType, handler EventHandler) SubscriptionID
	Unsubscribe(id SubscriptionID)
}

// EventHandler 事件处理器；在 Publish 的 goroutine 中同步调用，不应阻塞
type EventHandler func(event Event)

// SubscriptionID 订阅标识，用于取消订阅
type SubscriptionID uint64

type subscription struct {
	id      SubscriptionID
	handler EventHandler
}

// eventBus 事件总线实现
type eventBus struct {
	subscribers map[EventType][]subscription
	nextID      SubscriptionID
	mu          sync.RWMutex
}

func NewEventBus() EventBus {
	return &eventBus{
		subscribers: make(map[EventType][]subscription),
	}
}

// Publish 按订阅顺序分发事件
func (eb *eventBus) Publish(event Event) {
	eb.mu.RLock()
	subs := append([]subscription(nil), eb.subscribers[event.Type()]...)
	eb.mu.RUnlock()

	for _, sub := range subs {
		sub.handler(event)
	}
}

// Subscribe 订阅事件
func (eb *eventBus) Subscribe(eventType EventType, handler EventHandler) SubscriptionID {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.nextID++
	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscription{id: eb.nextID, handler: handler})
	return eb.nextID
}

// Unsubscribe 取消订阅；未知 ID 忽略
func (eb *eventBus) Unsubscribe(id SubscriptionID) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for eventType, subs := range eb.subscribers {
		for i, sub := range subs {
			if sub.id != id {
				continue
			}
			eb.subscribers[eventType] = append(subs[:i:i], subs[i+1:]...)
			if len(eb.subscribers[eventType]) == 0 {
				delete(eb.subscribers, eventType)
			}
			return
		}
	}
}
