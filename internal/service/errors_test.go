package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{ErrDuplicateEmail, "duplicate_email"},
		{fmt.Errorf("%w: %w", ErrWeakPassword, errors.New("too short")), "weak_password"},
		{fmt.Errorf("validate: %w", ErrStorageUnavailable), "storage_unavailable"},
		{ErrCredentialInactive, "credential_inactive"},
		{fmt.Errorf("issue: %w", context.DeadlineExceeded), "deadline_exceeded"},
		{errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.want {
			t.Fatalf("ErrorKind(%v): got %q want %q", tt.err, got, tt.want)
		}
	}
}

func TestStorageFailureHidesCause(t *testing.T) {
	err := storageFailure(context.Background(), discardLogger(), "issue", errors.New("pq: password authentication failed"))
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if err.Error() != "issue: storage unavailable" {
		t.Fatalf("unexpected message %q", err)
	}

	err = storageFailure(context.Background(), discardLogger(), "issue", context.Canceled)
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("context errors should pass through, got %v", err)
	}
}

func TestCredentialLocksSerializeSameID(t *testing.T) {
	locks := NewCredentialLocks(4)
	unlock := locks.Lock("c-1")
	acquired := make(chan struct{})
	go func() {
		release := locks.Lock("c-1")
		close(acquired)
		release()
	}()
	select {
	case <-acquired:
		t.Fatal("second lock acquired while first is held")
	default:
	}
	unlock()
	<-acquired
}
