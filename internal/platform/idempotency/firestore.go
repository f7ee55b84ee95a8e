package idempotency

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/hanko-field/catalog/internal/platform/firestore"
)

const (
	reserveAttempts = 3
	reserveTimeout  = 5 * time.Second
)

// FirestoreStore keeps keys in a Firestore collection. Documents carry an
// expiresAt field suitable for a Firestore TTL policy.
type FirestoreStore struct {
	provider   *pfirestore.Provider
	collection string
}

// NewFirestoreStore binds the store to collection.
func NewFirestoreStore(provider *pfirestore.Provider, collection string) (*FirestoreStore, error) {
	if provider == nil {
		return nil, errors.New("idempotency: firestore provider is required")
	}
	if collection == "" {
		return nil, errors.New("idempotency: collection is required")
	}
	return &FirestoreStore{provider: provider, collection: collection}, nil
}

type keyDocument struct {
	Key            string              `firestore:"key"`
	Fingerprint    string              `firestore:"fingerprint"`
	Status         string              `firestore:"status"`
	ResponseStatus int                 `firestore:"responseStatus,omitempty"`
	ResponseHeader map[string][]string `firestore:"responseHeader,omitempty"`
	ResponseBody   []byte              `firestore:"responseBody,omitempty"`
	ExpiresAt      time.Time           `firestore:"expiresAt"`
}

func (d keyDocument) record() Record {
	return Record{
		Key:            d.Key,
		Fingerprint:    d.Fingerprint,
		Status:         Status(d.Status),
		ResponseStatus: d.ResponseStatus,
		ResponseHeader: http.Header(d.ResponseHeader),
		ResponseBody:   d.ResponseBody,
		ExpiresAt:      d.ExpiresAt,
	}
}

func (s *FirestoreStore) doc(ctx context.Context, key string) (*firestore.DocumentRef, error) {
	client, err := s.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(s.collection).Doc(documentID(key)), nil
}

func (s *FirestoreStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	ref, err := s.doc(ctx, key)
	if err != nil {
		return Reservation{}, err
	}

	var result Reservation
	err = s.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err == nil {
			var doc keyDocument
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			record := doc.record()
			if !expired(record, now) {
				switch {
				case record.Fingerprint != fingerprint:
					return ErrFingerprintMismatch
				case record.Status == StatusCompleted:
					result = Reservation{State: ReservationCompleted, Record: record}
				default:
					result = Reservation{State: ReservationPending, Record: record}
				}
				return nil
			}
		}

		doc := keyDocument{Key: key, Fingerprint: fingerprint, Status: string(StatusPending), ExpiresAt: now.Add(ttl)}
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		result = Reservation{State: ReservationNew, Record: doc.record()}
		return nil
	}, pfirestore.WithTxAttempts(reserveAttempts), pfirestore.WithTxTimeout(reserveTimeout))
	if err != nil {
		return Reservation{}, err
	}
	return result, nil
}

func (s *FirestoreStore) Complete(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	ref, err := s.doc(ctx, key)
	if err != nil {
		return err
	}
	doc := keyDocument{
		Key:            key,
		Fingerprint:    fingerprint,
		Status:         string(StatusCompleted),
		ResponseStatus: resp.Status,
		ResponseHeader: storableHeader(resp.Header),
		ResponseBody:   resp.Body,
		ExpiresAt:      now.Add(ttl),
	}
	if _, err := ref.Set(ctx, doc); err != nil {
		return pfirestore.WrapError("idempotency.complete", err)
	}
	return nil
}

func (s *FirestoreStore) Release(ctx context.Context, key string) error {
	ref, err := s.doc(ctx, key)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil && status.Code(err) != codes.NotFound {
		return pfirestore.WrapError("idempotency.release", err)
	}
	return nil
}
