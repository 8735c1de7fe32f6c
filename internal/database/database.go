package database

import (
	"context"

	"cloud.google.com/go/firestore"
)

type ChangeEvent struct {
	Change firestore.DocumentChange
	Err    error
}

type DataBatch struct {
	DocRef *firestore.DocumentRef
	Data   interface{}
}

type UpdateBatch struct {
	DocRef  *firestore.DocumentRef
	Updates []firestore.Update
}

// FIXME: this interface is very much firestore dependant. It should be decoupled from the underlying db technology
type Client interface {
	NotifyOnChanges(ctx context.Context, it *firestore.QuerySnapshotIterator, kind firestore.DocumentChangeKind) <-chan ChangeEvent
	GetDoc(ctx context.Context, docRef *firestore.DocumentRef) (*firestore.DocumentSnapshot, error)
	IterDocs(ctx context.Context, query firestore.Query, fn func(*firestore.DocumentSnapshot) error) error
	UpdateDoc(ctx context.Context, docRef *firestore.DocumentRef, updates []firestore.Update, preconds ...firestore.Precondition) (_ *firestore.WriteResult, err error)
	UpdateDocs(ctx context.Context, data []UpdateBatch) (_ []*firestore.WriteResult, err error)
	SetDoc(ctx context.Context, docRef *firestore.DocumentRef, data interface{}, opts ...firestore.SetOption) (_ *firestore.WriteResult, err error)
	CreateDocs(ctx context.Context, data []DataBatch) (created []*firestore.DocumentRef, err error)
	Collection(path string) *firestore.CollectionRef
}
