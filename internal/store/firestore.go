package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/platinummonkey/regionscan/internal/model"
)

// firestoreRun is the document layout of a run in Firestore
type firestoreRun struct {
	Source       string    `firestore:"source"`
	Status       string    `firestore:"status"`
	DocumentType string    `firestore:"documentType"`
	Regions      int       `firestore:"regions"`
	Failed       int       `firestore:"failed"`
	MeanQuality  float64   `firestore:"meanQuality"`
	StartedAt    time.Time `firestore:"startedAt"`
	FinishedAt   time.Time `firestore:"finishedAt"`
	SavedAt      time.Time `firestore:"savedAt"`
	Payload      string    `firestore:"payload"`
}

// FirestoreStore keeps one Firestore document per run
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// OpenFirestore connects to Firestore. The emulator is used when
// FIRESTORE_EMULATOR_HOST is set.
func OpenFirestore(ctx context.Context, projectID, collection string) (*FirestoreStore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &FirestoreStore{client: client, collection: collection}, nil
}

func (s *FirestoreStore) runs() *firestore.CollectionRef {
	return s.client.Collection(s.collection)
}

// Save creates or overwrites the run's document
func (s *FirestoreStore) Save(ctx context.Context, run *Run) error {
	if err := run.validate(); err != nil {
		return err
	}
	payload, err := encodeDocument(run.Document)
	if err != nil {
		return err
	}

	sum := run.Summary()
	doc := firestoreRun{
		Source:       run.Source,
		Status:       string(sum.Status),
		DocumentType: string(sum.DocumentType),
		Regions:      sum.Regions,
		Failed:       sum.Failed,
		MeanQuality:  sum.MeanQuality,
		StartedAt:    sum.StartedAt,
		FinishedAt:   sum.FinishedAt,
		SavedAt:      run.SavedAt,
		Payload:      payload,
	}
	if _, err := s.runs().Doc(run.ID).Set(ctx, doc); err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// Get loads a run by ID
func (s *FirestoreStore) Get(ctx context.Context, id string) (*Run, error) {
	snap, err := s.runs().Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}

	var rec firestoreRun
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", id, err)
	}
	doc, err := decodeDocument(rec.Payload)
	if err != nil {
		return nil, err
	}
	return &Run{ID: id, Source: rec.Source, SavedAt: rec.SavedAt, Document: doc}, nil
}

// List returns run summaries, most recent first
func (s *FirestoreStore) List(ctx context.Context) ([]RunSummary, error) {
	snaps, err := s.runs().
		Select("source", "status", "documentType", "regions", "failed", "meanQuality", "startedAt", "finishedAt").
		OrderBy("startedAt", firestore.Desc).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	out := make([]RunSummary, 0, len(snaps))
	for _, snap := range snaps {
		var rec firestoreRun
		if err := snap.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode run %s: %w", snap.Ref.ID, err)
		}
		out = append(out, RunSummary{
			ID:           snap.Ref.ID,
			Source:       rec.Source,
			Status:       model.RunStatus(rec.Status),
			DocumentType: model.DocumentType(rec.DocumentType),
			Regions:      rec.Regions,
			Failed:       rec.Failed,
			MeanQuality:  rec.MeanQuality,
			StartedAt:    rec.StartedAt,
			FinishedAt:   rec.FinishedAt,
		})
	}
	return out, nil
}

// Delete removes a run
func (s *FirestoreStore) Delete(ctx context.Context, id string) error {
	ref := s.runs().Doc(id)
	if _, err := ref.Get(ctx); status.Code(err) == codes.NotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	} else if err != nil {
		return fmt.Errorf("failed to load run %s: %w", id, err)
	}
	if _, err := ref.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	return nil
}

// Close closes the Firestore client
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
