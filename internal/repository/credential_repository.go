package repository

import (
	"context"
	"errors"

	"github.com/sandeepkv93/credential-session-core/internal/domain"
	"github.com/sandeepkv93/credential-session-core/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrCredentialNotFound = errors.New("credential not found")
	ErrEmailTaken         = errors.New("email already registered")
)

type CredentialRepository interface {
	Create(ctx context.Context, c *domain.Credential) error
	FindByID(ctx context.Context, id string) (*domain.Credential, error)
	FindByEmail(ctx context.Context, email string) (*domain.Credential, error)
	// Deactivate flips active to false and revokes every session of the
	// credential in the same transaction. Repeated calls are no-ops.
	Deactivate(ctx context.Context, id string) (int64, error)
	// UpdatePassword overwrites the verifier and revokes all sessions.
	UpdatePassword(ctx context.Context, id, passwordHash string) (int64, error)
	// Delete removes the credential and its sessions atomically.
	Delete(ctx context.Context, id string) (int64, error)
}

type GormCredentialRepository struct{ db *gorm.DB }

func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &GormCredentialRepository{db: db}
}

func (r *GormCredentialRepository) Create(ctx context.Context, c *domain.Credential) error {
	err := r.db.WithContext(ctx).Create(c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			observability.RecordRepositoryOperation(ctx, "credential", "create", "conflict")
			return ErrEmailTaken
		}
		observability.RecordRepositoryOperation(ctx, "credential", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "credential", "create", "success")
	return nil
}

func (r *GormCredentialRepository) FindByID(ctx context.Context, id string) (*domain.Credential, error) {
	var c domain.Credential
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&c).Error
	return r.found(ctx, "find_by_id", &c, err)
}

func (r *GormCredentialRepository) FindByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	var c domain.Credential
	err := r.db.WithContext(ctx).Where("email = ?", email).Take(&c).Error
	return r.found(ctx, "find_by_email", &c, err)
}

func (r *GormCredentialRepository) found(ctx context.Context, op string, c *domain.Credential, err error) (*domain.Credential, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "credential", op, "not_found")
			return nil, ErrCredentialNotFound
		}
		observability.RecordRepositoryOperation(ctx, "credential", op, "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "credential", op, "success")
	return c, nil
}

func (r *GormCredentialRepository) Deactivate(ctx context.Context, id string) (int64, error) {
	var revoked int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockCredential(tx, id); err != nil {
			return err
		}
		if err := tx.Model(&domain.Credential{}).Where("id = ?", id).Update("active", false).Error; err != nil {
			return err
		}
		n, err := revokeSessionsOf(tx, id)
		revoked = n
		return err
	})
	return revoked, r.recordWrite(ctx, "deactivate", err)
}

func (r *GormCredentialRepository) UpdatePassword(ctx context.Context, id, passwordHash string) (int64, error) {
	var revoked int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockCredential(tx, id); err != nil {
			return err
		}
		if err := tx.Model(&domain.Credential{}).Where("id = ?", id).Update("password", passwordHash).Error; err != nil {
			return err
		}
		n, err := revokeSessionsOf(tx, id)
		revoked = n
		return err
	})
	return revoked, r.recordWrite(ctx, "update_password", err)
}

func (r *GormCredentialRepository) Delete(ctx context.Context, id string) (int64, error) {
	var purged int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockCredential(tx, id); err != nil {
			return err
		}
		// Explicit fan-out so the cascade holds even where the foreign key
		// is not enforced by the engine.
		res := tx.Where("credential_id = ?", id).Delete(&domain.Session{})
		if res.Error != nil {
			return res.Error
		}
		purged = res.RowsAffected
		return tx.Where("id = ?", id).Delete(&domain.Credential{}).Error
	})
	return purged, r.recordWrite(ctx, "delete", err)
}

func (r *GormCredentialRepository) recordWrite(ctx context.Context, op string, err error) error {
	switch {
	case err == nil:
		observability.RecordRepositoryOperation(ctx, "credential", op, "success")
	case errors.Is(err, ErrCredentialNotFound):
		observability.RecordRepositoryOperation(ctx, "credential", op, "not_found")
	default:
		observability.RecordRepositoryOperation(ctx, "credential", op, "error")
	}
	return err
}

// lockCredential takes a row lock on the credential for the rest of tx so
// session writes for the same credential serialize behind it. SQLite ignores
// the locking clause and relies on its single writer instead.
func lockCredential(tx *gorm.DB, id string) (*domain.Credential, error) {
	var c domain.Credential
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCredentialNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func revokeSessionsOf(tx *gorm.DB, credentialID string) (int64, error) {
	res := tx.Model(&domain.Session{}).
		Where("credential_id = ? AND active = ?", credentialID, true).
		Update("active", false)
	return res.RowsAffected, res.Error
}
