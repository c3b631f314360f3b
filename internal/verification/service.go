// Package verification issues and checks the one-time codes emailed to
// shoppers before checkout.
package verification

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"
)

var (
	ErrCodeNotFound    = errors.New("code not found (expired or not sent)")
	ErrCodeMismatch    = errors.New("invalid code")
	ErrTooManyAttempts = errors.New("too many attempts")
)

const (
	codeMin = 100000
	codeMax = 999999
)

// Entry is a stored code for one email address.
type Entry struct {
	Code      string
	ExpiresAt time.Time
	Attempts  int
}

// CodeStore keeps at most one pending code per email.
type CodeStore interface {
	// Save replaces any code stored for email and resets its attempts.
	Save(ctx context.Context, email, code string, expiresAt time.Time) error
	// Get returns ErrCodeNotFound when nothing is stored for email.
	Get(ctx context.Context, email string) (*Entry, error)
	// IncrementAttempts records a failed attempt and returns the new count.
	IncrementAttempts(ctx context.Context, email string) (int, error)
	Delete(ctx context.Context, email string) error
}

// Service issues and verifies codes on top of a CodeStore.
type Service struct {
	store       CodeStore
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
}

// NewService creates a new Service.
func NewService(store CodeStore, ttl time.Duration, maxAttempts int) *Service {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Service{
		store:       store,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// Issue generates a fresh six digit code for email, replacing any previous
// one, and returns it so the caller can deliver it.
func (s *Service) Issue(ctx context.Context, email string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	if err := s.store.Save(ctx, normalize(email), code, s.now().Add(s.ttl)); err != nil {
		return "", fmt.Errorf("save code: %w", err)
	}
	return code, nil
}

// Verify checks code against the one stored for email. Every call counts
// as an attempt before the comparison, so concurrent guesses cannot exceed
// the limit. A matching code is consumed. Expired codes and codes that
// reach the attempt limit are deleted.
func (s *Service) Verify(ctx context.Context, email, code string) error {
	email = normalize(email)

	entry, err := s.store.Get(ctx, email)
	if err != nil {
		return err
	}

	if !s.now().Before(entry.ExpiresAt) {
		s.discard(ctx, email)
		return ErrCodeNotFound
	}

	attempts, err := s.store.IncrementAttempts(ctx, email)
	if err != nil {
		return err
	}
	if attempts > s.maxAttempts {
		s.discard(ctx, email)
		return ErrTooManyAttempts
	}

	if subtle.ConstantTimeCompare([]byte(entry.Code), []byte(strings.TrimSpace(code))) != 1 {
		if attempts >= s.maxAttempts {
			s.discard(ctx, email)
			return ErrTooManyAttempts
		}
		return ErrCodeMismatch
	}

	return s.store.Delete(ctx, email)
}

func (s *Service) discard(ctx context.Context, email string) {
	if err := s.store.Delete(ctx, email); err != nil {
		log.Printf("[Verify] deleting code for %s failed: %v", email, err)
	}
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
