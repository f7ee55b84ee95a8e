package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
)

// TxFunc runs inside a transaction. Firestore may call it again on contention,
// so it must not leak side effects outside tx.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

// TxOption tunes a single transaction.
type TxOption func(*txSettings)

type txSettings struct {
	op       string
	attempts int
	timeout  time.Duration
}

// WithTxOp labels errors returned by the transaction.
func WithTxOp(op string) TxOption {
	return func(s *txSettings) {
		if op != "" {
			s.op = op
		}
	}
}

// WithTxAttempts caps how many times Firestore retries on contention.
func WithTxAttempts(attempts int) TxOption {
	return func(s *txSettings) {
		if attempts > 0 {
			s.attempts = attempts
		}
	}
}

// WithTxTimeout bounds the whole transaction, retries included.
func WithTxTimeout(timeout time.Duration) TxOption {
	return func(s *txSettings) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

func runTransaction(ctx context.Context, client *firestore.Client, fn TxFunc, opts []TxOption) error {
	settings := txSettings{op: "transaction", attempts: 5, timeout: 15 * time.Second}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}
	if fn == nil {
		return WrapError(settings.op, errors.New("firestore: nil transaction func"))
	}

	// An earlier caller deadline wins.
	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > settings.timeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.timeout)
		defer cancel()
	}

	err := client.RunTransaction(ctx, fn, firestore.MaxAttempts(settings.attempts))
	return WrapError(settings.op, err)
}
