package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var (
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password does not satisfy policy")
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrExpired            = errors.New("session expired")
	ErrRevoked            = errors.New("session revoked")
	ErrCredentialInactive = errors.New("credential inactive")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrLoginThrottled     = errors.New("too many failed login attempts")
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrDuplicateEmail, "duplicate_email"},
	{ErrInvalidEmail, "invalid_email"},
	{ErrWeakPassword, "weak_password"},
	{ErrNotFound, "not_found"},
	{ErrInvalidCredentials, "invalid_credentials"},
	{ErrExpired, "expired"},
	{ErrRevoked, "revoked"},
	{ErrCredentialInactive, "credential_inactive"},
	{ErrStorageUnavailable, "storage_unavailable"},
	{ErrLoginThrottled, "login_throttled"},
	{context.Canceled, "canceled"},
	{context.DeadlineExceeded, "deadline_exceeded"},
}

// ErrorKind maps err to a stable label. nil is "success"; anything outside
// the taxonomy is "internal".
func ErrorKind(err error) string {
	if err == nil {
		return "success"
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}

// storageFailure logs the driver error and hides it behind
// ErrStorageUnavailable. Context errors pass through unchanged.
func storageFailure(ctx context.Context, logger *slog.Logger, op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	logger.ErrorContext(ctx, "storage operation failed", "op", op, "error", err)
	return fmt.Errorf("%s: %w", op, ErrStorageUnavailable)
}
