package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// firestore rejects batches with more writes than this
const maxBatchWrites = 500

var ErrDocNotExist = errors.New("doc snapshot does not exist")

type snapEvent struct {
	snap *firestore.QuerySnapshot
	err  error
}

type snapCh chan snapEvent

type FirestoreClient struct {
	*firestore.Client
	writeTimeout time.Duration
}

func New(client *firestore.Client, writeTimeout time.Duration) FirestoreClient {
	if writeTimeout <= 0 {
		writeTimeout = time.Second * 120
	}
	return FirestoreClient{
		Client:       client,
		writeTimeout: writeTimeout,
	}
}

// This function listens to the given SnapshotIterator and put all the events on the ChangeEvent channel.
// The cicuite breaker pattern here defines a error rate tolarance cap. If the listener raises error more than
// the given cap, it stops the listener and closes the ChangeEvent channel.
func (c FirestoreClient) NotifyOnChanges(ctx context.Context, it *firestore.QuerySnapshotIterator, kind firestore.DocumentChangeKind) <-chan ChangeEvent {

	ch := make(chan ChangeEvent)
	errToleranceCap := 20
	errCnt := 0

	go func() {
		defer close(ch)

		eventCh := registerEventListener(ctx, it)
		for event := range eventCh {
			if event.err != nil {
				if isCanceled(event.err) {
					return
				}

				log.Error().Err(event.err).Msg("error reading events")
				errCnt++
				if errCnt < errToleranceCap {
					continue
				}
				ch <- ChangeEvent{Err: event.err}
				return
			}

			for _, change := range event.snap.Changes {
				if change.Kind != kind || change.Doc == nil || !change.Doc.Exists() {
					continue
				}

				select {
				case ch <- ChangeEvent{Change: change}:
				case <-ctx.Done():
					return
				case <-time.After(time.Minute):
					log.Error().Str("docId", change.Doc.Ref.ID).Msg("timedout to deliver a change to the client")
				}
			}
		}
	}()

	return ch
}

// registerEventListener keeps the listener open until context is cancelled
func registerEventListener(ctx context.Context, it *firestore.QuerySnapshotIterator) <-chan snapEvent {

	threshold := 5
	retry := 0
	c := make(snapCh)
	go func() {
		defer close(c)
		defer it.Stop()

		for {
			snap, err := it.Next()
			if err == iterator.Done {
				return
			}

			select {
			case <-ctx.Done():
				return
			case c <- snapEvent{snap, err}:
				continue
			case <-time.After(time.Second * 10):
				log.Error().Msg("timedout to deliver a snapshot to the client")
				retry++
				if retry > threshold {
					return
				}
			}
		}
	}()

	return c
}

// IterDocs calls fn for every doc the query yields, stopping at the first error.
func (c FirestoreClient) IterDocs(ctx context.Context, query firestore.Query, fn func(*firestore.DocumentSnapshot) error) error {
	iter := query.Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return fmt.Errorf("iterate docs: %w", err)
		}

		if err := fn(doc); err != nil {
			return err
		}
	}
}

func (c FirestoreClient) GetDoc(ctx context.Context, docRef *firestore.DocumentRef) (*firestore.DocumentSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	docSnapshot, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrDocNotExist
		}
		return nil, err
	}

	if !docSnapshot.Exists() {
		return nil, ErrDocNotExist
	}

	return docSnapshot, nil
}

func (c FirestoreClient) UpdateDoc(ctx context.Context, docRef *firestore.DocumentRef, updates []firestore.Update, preconds ...firestore.Precondition) (_ *firestore.WriteResult, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	return docRef.Update(ctx, updates, preconds...)
}

func (c FirestoreClient) UpdateDocs(ctx context.Context, data []UpdateBatch) (_ []*firestore.WriteResult, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	results := make([]*firestore.WriteResult, 0, len(data))
	for start := 0; start < len(data); start += maxBatchWrites {
		batch := c.Client.Batch()
		for _, item := range data[start:min(start+maxBatchWrites, len(data))] {
			batch.Update(item.DocRef, item.Updates)
		}

		res, err := batch.Commit(ctx)
		if err != nil {
			return results, err
		}
		results = append(results, res...)
	}
	return results, nil
}

func (c FirestoreClient) SetDoc(ctx context.Context, docRef *firestore.DocumentRef, data interface{}, opts ...firestore.SetOption) (_ *firestore.WriteResult, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	return docRef.Set(ctx, data, opts...)
}

// CreateDocs writes only the documents that do not exist yet; existing ones are left
// untouched and left out of the returned refs.
func (c FirestoreClient) CreateDocs(ctx context.Context, data []DataBatch) (created []*firestore.DocumentRef, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	bw := c.Client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(data))
	for _, item := range data {
		job, err := bw.Create(item.DocRef, item.Data)
		if err != nil {
			bw.End()
			return nil, fmt.Errorf("enqueue create: %w, id: %s", err, item.DocRef.ID)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	created = make([]*firestore.DocumentRef, 0, len(data))
	for i, job := range jobs {
		if _, err := job.Results(); err != nil {
			if status.Code(err) == codes.AlreadyExists {
				continue
			}
			return created, fmt.Errorf("create doc: %w, id: %s", err, data[i].DocRef.ID)
		}
		created = append(created, data[i].DocRef)
	}
	return created, nil
}

// The error is not wrapped properly, so errors.Is() does not work
func isCanceled(err error) bool {
	return strings.Contains(err.Error(), "context canceled") || strings.Contains(err.Error(), "context deadline exceeded")
}
