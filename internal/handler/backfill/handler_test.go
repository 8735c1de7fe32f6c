package backfill

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go-firestore-sentiment/internal/dedup"
	ierr "go-firestore-sentiment/internal/errors"
	"go-firestore-sentiment/internal/eventpublisher/event"
	"go-firestore-sentiment/internal/ingestion"
	"go-firestore-sentiment/internal/model"
	"go-firestore-sentiment/internal/repository/memory"
)

type fakeIngester struct {
	mu       sync.Mutex
	err      error
	policies []string
}

func (f *fakeIngester) Ingest(_ context.Context, product model.Product, policy dedup.Policy, _ int) (ingestion.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.policies = append(f.policies, policy.Name())
	if f.err != nil {
		return ingestion.Result{}, f.err
	}
	return ingestion.Result{ProductId: product.Id, NewCount: 4}, nil
}

func (f *fakeIngester) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.policies)
}

type fakePublisher struct {
	mu  sync.Mutex
	sub event.EventWChannel
}

func (p *fakePublisher) Subscribe(ch event.EventWChannel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sub = ch
}

func (p *fakePublisher) Unsubscribe(event.EventWChannel) {}

func (p *fakePublisher) send(t *testing.T, e event.Event) {
	t.Helper()
	for i := 0; i < 100; i++ {
		p.mu.Lock()
		sub := p.sub
		p.mu.Unlock()
		if sub != nil {
			sub <- e
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("handler never subscribed")
}

func TestHandleRunsFirstIngestion(t *testing.T) {
	ctx := context.Background()
	products := memory.New().Products()
	p, _ := products.Create(ctx, model.Product{Platform: model.PlatformInstagram, PlatformProductId: "x", AwaitingBackfill: true})

	ing := &fakeIngester{}
	h := New(&fakePublisher{}, products, ing, 50)

	if err := h.handle(ctx, p); err != nil {
		t.Fatalf("handle() error = %v", err)
	}

	got, _ := products.GetById(ctx, p.Id)
	if got.AwaitingBackfill || got.ScrapeStatus != model.ScrapeStatusSuccess || got.LastScraped == nil {
		t.Fatalf("product after backfill = %+v", got)
	}
	if ing.policies[0] != (dedup.CompositeKey{}).Name() {
		t.Fatalf("policy = %s, want composite-key", ing.policies[0])
	}

	// a replayed event is ignored
	if err := h.handle(ctx, p); err != nil || ing.calls() != 1 {
		t.Fatalf("replayed handle() = %v, ingest calls %d", err, ing.calls())
	}
}

func TestHandleMarksFailedScrape(t *testing.T) {
	ctx := context.Background()
	products := memory.New().Products()
	p, _ := products.Create(ctx, model.Product{Platform: model.PlatformInstagram, PlatformProductId: "x", AwaitingBackfill: true})

	h := New(&fakePublisher{}, products, &fakeIngester{err: ierr.NewScrapeFailure(p.Url, errors.New("down"))}, 50)
	if err := h.handle(ctx, p); !ierr.IsScrapeFailure(err) {
		t.Fatalf("handle() error = %v, want ScrapeFailure", err)
	}

	got, _ := products.GetById(ctx, p.Id)
	if got.AwaitingBackfill || got.ScrapeStatus != model.ScrapeStatusFailed {
		t.Fatalf("product after failed backfill = %+v", got)
	}
}

func TestEventHandler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	products := memory.New().Products()
	p, _ := products.Create(ctx, model.Product{Platform: model.PlatformInstagram, PlatformProductId: "x", AwaitingBackfill: true})

	pub := &fakePublisher{}
	ing := &fakeIngester{}
	h := New(pub, products, ing, 50)

	done := make(chan error)
	go func() { done <- h.EventHandler(ctx) }()

	pub.send(t, event.Event{Message: "not a product"})
	pub.send(t, event.Event{Message: p})

	deadline := time.Now().Add(2 * time.Second)
	for ing.calls() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("product was not backfilled")
		}
		time.Sleep(10 * time.Millisecond)
	}

	pub.send(t, event.Event{Err: errors.New("listener broke")})
	if err := <-done; err == nil {
		t.Fatal("EventHandler() error = nil, want listener error")
	}
}
