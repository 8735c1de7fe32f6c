package helper

import (
	"context"
	"time"

	"go-firestore-sentiment/internal/database"
	"go-firestore-sentiment/internal/repository/filter"

	"cloud.google.com/go/firestore"
)

// Apply narrows the query by every where clause.
func Apply(query firestore.Query, where []filter.Where) firestore.Query {
	for _, w := range where {
		query = query.Where(w.Path, w.Op, w.Value)
	}
	return query
}

func NotifyOnChanges(ctx context.Context, db database.Client, query firestore.Query,
	where []filter.Where, kind firestore.DocumentChangeKind, fn func(firestore.DocumentChange, error) error) {

	query = Apply(query, where)
	events := db.NotifyOnChanges(ctx, query.Snapshots(ctx), kind)

	for e := range events {
		if e.Err != nil {
			fn(e.Change, e.Err)
			return
		}

		if err := fn(e.Change, nil); err != nil {
			return
		}
	}
}

// NonblockingWrite is a generic function that can write any type of event to any channel type.
// T is the type parameter for the event.
func NonblockingWrite[T any](ctx context.Context, timeout time.Duration, ch chan<- T, event T) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
