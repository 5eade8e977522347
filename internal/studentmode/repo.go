package studentmode

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CredentialRepository defines persistence for the lab PIN.
type CredentialRepository interface {
	GetCredential(ctx context.Context) (*PinCredential, error)
	SetCredential(ctx context.Context, hash string, expiresAt *time.Time, updatedBy string) error
}

// PGRepository implements CredentialRepository using PostgreSQL. The lab has
// exactly one credential row.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ CredentialRepository = (*PGRepository)(nil)

// GetCredential fetches the lab PIN; nil means no PIN has been configured.
func (r *PGRepository) GetCredential(ctx context.Context) (*PinCredential, error) {
	var cred PinCredential
	err := r.pool.QueryRow(ctx, `SELECT pin_hash, expires_at, updated_by, updated_at FROM lab_credentials WHERE id=1`).
		Scan(&cred.PinHash, &cred.ExpiresAt, &cred.UpdatedBy, &cred.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &cred, nil
}

// SetCredential stores a new PIN hash, replacing any previous one.
func (r *PGRepository) SetCredential(ctx context.Context, hash string, expiresAt *time.Time, updatedBy string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO lab_credentials (id, pin_hash, expires_at, updated_by, updated_at)
VALUES (1, $1, $2, $3, NOW())
ON CONFLICT (id) DO UPDATE SET pin_hash=EXCLUDED.pin_hash, expires_at=EXCLUDED.expires_at, updated_by=EXCLUDED.updated_by, updated_at=NOW()`,
		hash, expiresAt, updatedBy)
	return err
}
