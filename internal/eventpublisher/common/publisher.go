package common

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-firestore-sentiment/internal/eventpublisher/event"
)

var ErrWriteFailure = fmt.Errorf("write failure threshold exceeded")

// PublisherWithFailureThreshold delivers events with a timeout and reports ErrWriteFailure
// once a subscriber has missed writeFailureThreshold deliveries.
type PublisherWithFailureThreshold struct {
	writeTimeout          time.Duration
	writeFailureThreshold int
	failureCount          map[event.EventWChannel]int
	failureMu             sync.Mutex
}

func NewPublisherWithFailureThreshold(writeTimeout time.Duration, writeFailureThreshold int) *PublisherWithFailureThreshold {
	return &PublisherWithFailureThreshold{
		writeTimeout:          writeTimeout,
		writeFailureThreshold: writeFailureThreshold,
		failureCount:          make(map[event.EventWChannel]int),
	}
}

func (p *PublisherWithFailureThreshold) Publish(ctx context.Context, subscriber event.EventWChannel, e event.Event) (err error) {

	defer func() {
		// Since the subscriber channel may be closed after some failures,
		// it may happen that another execution of this func tries to write
		// on a closed subscriber and it causes a panic that should be recovered silently.
		if p := recover(); p != nil {
			err = ErrWriteFailure
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()

	select {
	case subscriber <- e:
		return nil
	case <-ctx.Done():
		if count := p.recordFailure(subscriber); count >= p.writeFailureThreshold {
			return ErrWriteFailure
		}
		return nil
	}
}

func (p *PublisherWithFailureThreshold) recordFailure(subscriber event.EventWChannel) int {
	p.failureMu.Lock()
	defer p.failureMu.Unlock()

	p.failureCount[subscriber]++
	return p.failureCount[subscriber]
}

// Forget drops the failure count of a subscriber that left.
func (p *PublisherWithFailureThreshold) Forget(subscriber event.EventWChannel) {
	p.failureMu.Lock()
	defer p.failureMu.Unlock()

	delete(p.failureCount, subscriber)
}
