package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore is a Firestore-backed implementation of Store. Fields are
// stored in snake_case so records match the hosted table layout.
type FirestoreStore struct {
	client    *firestore.Client
	works     string
	inquiries string
}

// NewFirestoreStore creates a new FirestoreStore using the given Firestore client.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{
		client:    client,
		works:     "works",
		inquiries: "inquiries",
	}
}

func (s *FirestoreStore) workRef(id string) *firestore.DocumentRef {
	return s.client.Collection(s.works).Doc(id)
}

func snapshotToWork(snap *firestore.DocumentSnapshot) WorkPost {
	data := snap.Data()
	data["id"] = snap.Ref.ID
	return WorkFromRow(data)
}

func (s *FirestoreStore) List(ctx context.Context) ([]WorkSummary, error) {
	iter := s.client.Collection(s.works).
		Select("title", "category", "summary", "created_at", "updated_at").
		OrderBy("created_at", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	result := []WorkSummary{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list works: %w", err)
		}
		w := snapshotToWork(snap)
		result = append(result, w.Brief())
	}
	sortSummaries(result)
	return result, nil
}

func (s *FirestoreStore) Get(ctx context.Context, id string) (*WorkPost, error) {
	snap, err := s.workRef(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, workNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	w := snapshotToWork(snap)
	return &w, nil
}

func (s *FirestoreStore) Upsert(ctx context.Context, w *WorkPost) error {
	var prev *WorkPost
	if w.ID != "" && w.CreatedAt.IsZero() {
		existing, err := s.Get(ctx, w.ID)
		if err == nil {
			prev = existing
		}
	}
	if err := prepareWork(w, prev, time.Now()); err != nil {
		return err
	}
	if _, err := s.workRef(w.ID).Set(ctx, workToRow(w)); err != nil {
		return fmt.Errorf("upsert work %q: %w", w.ID, err)
	}
	return nil
}

func (s *FirestoreStore) UpdateContent(ctx context.Context, id, content string) error {
	_, err := s.workRef(id).Update(ctx, []firestore.Update{
		{Path: "content", Value: content},
		{Path: "updated_at", Value: time.Now()},
	})
	if status.Code(err) == codes.NotFound {
		return workNotFound(id)
	}
	return err
}

func (s *FirestoreStore) Delete(ctx context.Context, id string) error {
	_, err := s.workRef(id).Delete(ctx, firestore.Exists)
	if status.Code(err) == codes.NotFound {
		return workNotFound(id)
	}
	return err
}

func (s *FirestoreStore) CreateInquiry(ctx context.Context, q *Inquiry) error {
	prepareInquiry(q, time.Now())
	_, err := s.client.Collection(s.inquiries).Doc(q.ID).Create(ctx, inquiryToRow(q))
	if status.Code(err) == codes.AlreadyExists {
		return fmt.Errorf("inquiry %q: %w", q.ID, ErrAlreadyExists)
	}
	return err
}

func (s *FirestoreStore) ListInquiries(ctx context.Context) ([]Inquiry, error) {
	iter := s.client.Collection(s.inquiries).OrderBy("created_at", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	result := []Inquiry{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list inquiries: %w", err)
		}
		data := snap.Data()
		data["id"] = snap.Ref.ID
		result = append(result, InquiryFromRow(data))
	}
	sortInquiries(result)
	return result, nil
}
