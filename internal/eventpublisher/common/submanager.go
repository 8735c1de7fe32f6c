package common

import (
	"sync"

	"go-firestore-sentiment/internal/eventpublisher/event"
)

type SubManager struct {
	subscribers    map[event.EventWChannel]struct{}
	subscriptionMu sync.RWMutex
}

func NewSubManager() *SubManager {
	return &SubManager{
		subscribers: make(map[event.EventWChannel]struct{}),
	}
}

func (m *SubManager) Subscribe(subscriber event.EventWChannel) {
	m.subscriptionMu.Lock()
	defer m.subscriptionMu.Unlock()

	m.subscribers[subscriber] = struct{}{}
}

// Unsubscribe removes and closes the channel. It reports false when the channel was not
// subscribed, so a channel is closed at most once.
func (m *SubManager) Unsubscribe(subscriber event.EventWChannel) bool {
	m.subscriptionMu.Lock()
	defer m.subscriptionMu.Unlock()

	if _, ok := m.subscribers[subscriber]; !ok {
		return false
	}
	delete(m.subscribers, subscriber)
	close(subscriber)
	return true
}

func (m *SubManager) UnsubscribeAll() {
	for _, subscriber := range m.snapshot() {
		m.Unsubscribe(subscriber)
	}
}

func (m *SubManager) Count() int {
	m.subscriptionMu.RLock()
	defer m.subscriptionMu.RUnlock()

	return len(m.subscribers)
}

// OnSubscribers runs do on a copy of the subscriber set, so do may unsubscribe.
func (m *SubManager) OnSubscribers(do func(event.EventWChannel)) {
	for _, subscriber := range m.snapshot() {
		do(subscriber)
	}
}

func (m *SubManager) snapshot() []event.EventWChannel {
	m.subscriptionMu.RLock()
	defer m.subscriptionMu.RUnlock()

	subs := make([]event.EventWChannel, 0, len(m.subscribers))
	for subscriber := range m.subscribers {
		subs = append(subs, subscriber)
	}
	return subs
}
