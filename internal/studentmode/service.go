package studentmode

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/yellyhaze23/mbb-lab-inventory-sub000/internal/inventory"
	"github.com/yellyhaze23/mbb-lab-inventory-sub000/internal/shared"
)

// StockRecorder is the slice of the inventory service the kiosk flow needs.
type StockRecorder interface {
	Use(ctx context.Context, input inventory.UseInput) (inventory.MutationResult, error)
}

// AuditPort abstracts the external audit sink.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service gates unauthenticated student stock recording behind the PIN check
// and the brute-force throttle.
type Service struct {
	repo      CredentialRepository
	throttle  *Throttle
	stock     StockRecorder
	audit     AuditPort
	failDelay time.Duration
}

// NewService builds Service. failDelay is the fixed artificial pause applied
// to every failed verification to blunt timing-based enumeration.
func NewService(repo CredentialRepository, throttle *Throttle, stock StockRecorder, audit AuditPort, failDelay time.Duration) *Service {
	return &Service{repo: repo, throttle: throttle, stock: stock, audit: audit, failDelay: failDelay}
}

// VerifyPIN checks the raw PIN for the given client key. While the key is
// locked the credential store is never consulted. On failure the remaining
// attempt count before lockout is returned alongside ErrInvalidPIN.
func (s *Service) VerifyPIN(ctx context.Context, clientKey, rawPIN string) (remaining int, err error) {
	remaining, err = s.throttle.Check(clientKey)
	if err != nil {
		return 0, err
	}

	cred, err := s.repo.GetCredential(ctx)
	if err != nil {
		return remaining, &shared.PersistenceError{Op: "load credential", Err: err}
	}
	if cred == nil {
		return s.fail(ctx, clientKey)
	}
	if cred.Expired(time.Now()) {
		return remaining, shared.ErrPINExpired
	}
	if bcrypt.CompareHashAndPassword([]byte(cred.PinHash), []byte(rawPIN)) != nil {
		return s.fail(ctx, clientKey)
	}

	s.throttle.Reset(clientKey)
	return 0, nil
}

// fail applies the artificial delay and counts the attempt. The delay runs
// before the counter update so lock-triggering attempts are slowed too.
func (s *Service) fail(ctx context.Context, clientKey string) (int, error) {
	s.sleep(ctx)
	if err := s.throttle.Fail(clientKey); err != nil {
		return 0, err
	}
	remaining, err := s.throttle.Check(clientKey)
	if err != nil {
		return 0, err
	}
	return remaining, shared.ErrInvalidPIN
}

func (s *Service) sleep(ctx context.Context) {
	if s.failDelay <= 0 {
		return
	}
	timer := time.NewTimer(s.failDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// SetPIN stores a new lab PIN. The plaintext never leaves this call.
func (s *Service) SetPIN(ctx context.Context, rawPIN string, expiresAt *time.Time, actor shared.Actor) error {
	if len(rawPIN) < 4 || len(rawPIN) > 8 {
		return shared.NewValidationError("pin", "PIN must be 4 to 8 characters")
	}
	for _, r := range rawPIN {
		if r < '0' || r > '9' {
			return shared.NewValidationError("pin", "PIN must contain digits only")
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(rawPIN), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.SetCredential(ctx, string(hash), expiresAt, actor.Name); err != nil {
		return &shared.PersistenceError{Op: "store credential", Err: err}
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    actor,
			Action:   "studentmode:set_pin",
			Entity:   "lab_credential",
			EntityID: "1",
			Source:   "manual",
		})
	}
	return nil
}

// RecordUseInput is an unauthenticated stock deduction from the kiosk.
type RecordUseInput struct {
	ClientKey      string
	PIN            string
	ItemID         int64
	Mode           inventory.UseMode
	Amount         float64
	StudentName    string
	Notes          string
	IdempotencyKey string
}

// RecordUse verifies the PIN (throttled) and records the deduction with
// source student_mode. The quantity change itself runs under the stock
// mutation protocol's atomicity and idempotency contract.
func (s *Service) RecordUse(ctx context.Context, input RecordUseInput) (inventory.MutationResult, int, error) {
	if input.StudentName == "" {
		return inventory.MutationResult{}, 0, shared.NewValidationError("student_name", "Student name is required")
	}
	remaining, err := s.VerifyPIN(ctx, input.ClientKey, input.PIN)
	if err != nil {
		return inventory.MutationResult{}, remaining, err
	}
	result, err := s.stock.Use(ctx, inventory.UseInput{
		ItemID:         input.ItemID,
		Mode:           input.Mode,
		Amount:         input.Amount,
		Notes:          input.Notes,
		Actor:          shared.Actor{Name: fmt.Sprintf("student: %s", input.StudentName)},
		Source:         inventory.SourceStudentMode,
		IdempotencyKey: input.IdempotencyKey,
	})
	return result, 0, err
}
