package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/carauth"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const accountColumns = `id, email, password_hash, full_name, phone, membership, role,
	pref_email, pref_sms, pref_newsletter, verified,
	verification_hash, verification_expires_at, reset_hash, reset_expires_at,
	failed_attempts, lock_until, created_at, updated_at, last_login_at, version`

// Store is a carauth.CredentialStore over a Postgres connection.
type Store struct {
	db DBTX
}

// New returns a Store using db.
func New(db DBTX) *Store {
	return &Store{db: db}
}

var _ carauth.CredentialStore = (*Store)(nil)

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", carauth.ErrStoreUnavailable, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*carauth.Account, error) {
	var (
		a                                    carauth.Account
		membership                           string
		verificationHash, resetHash          sql.NullString
		verificationExp, resetExp, lockUntil sql.NullTime
		lastLogin                            sql.NullTime
	)
	err := row.Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.FullName, &a.Phone, &membership, &a.Role,
		&a.Preferences.EmailNotifications, &a.Preferences.SMSNotifications, &a.Preferences.Newsletter,
		&a.Verified,
		&verificationHash, &verificationExp, &resetHash, &resetExp,
		&a.FailedAttempts, &lockUntil, &a.CreatedAt, &a.UpdatedAt, &lastLogin, &a.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, carauth.ErrAccountNotFound
		}
		return nil, unavailable(err)
	}

	a.Membership = carauth.Membership(membership)
	a.VerificationTokenHash = verificationHash.String
	a.ResetTokenHash = resetHash.String
	a.VerificationExpiresAt = fromNullTime(verificationExp)
	a.ResetExpiresAt = fromNullTime(resetExp)
	a.LockUntil = fromNullTime(lockUntil)
	a.LastLoginAt = fromNullTime(lastLogin)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func fromNullTime(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

// FindByEmail looks the account up case-insensitively.
func (s *Store) FindByEmail(ctx context.Context, email string, withCredential bool) (*carauth.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(email) = lower($1)`

	acc, err := scanAccount(s.db.QueryRowContext(ctx, query, strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if !withCredential {
		acc.PasswordHash = ""
	}
	return acc, nil
}

// FindByID looks the account up by primary key.
func (s *Store) FindByID(ctx context.Context, id string) (*carauth.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(s.db.QueryRowContext(ctx, query, id))
}

// Create inserts the account with version 1.
func (s *Store) Create(ctx context.Context, account *carauth.Account) (*carauth.Account, error) {
	if account == nil || account.ID == "" {
		return nil, errors.New("pgstore: account id is required")
	}

	query := `INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, 1)
		RETURNING ` + accountColumns

	a := account
	acc, err := scanAccount(s.db.QueryRowContext(ctx, query,
		a.ID, strings.ToLower(strings.TrimSpace(a.Email)), a.PasswordHash, a.FullName, a.Phone,
		string(a.Membership), a.Role,
		a.Preferences.EmailNotifications, a.Preferences.SMSNotifications, a.Preferences.Newsletter,
		a.Verified,
		nullString(a.VerificationTokenHash), nullTime(a.VerificationExpiresAt),
		nullString(a.ResetTokenHash), nullTime(a.ResetExpiresAt),
		a.FailedAttempts, nullTime(a.LockUntil), a.CreatedAt, a.UpdatedAt, nullTime(a.LastLoginAt),
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, carauth.ErrDuplicateAccount
		}
		return nil, err
	}
	return acc, nil
}

// Save updates the mutable columns if version still matches.
func (s *Store) Save(ctx context.Context, account *carauth.Account) (*carauth.Account, error) {
	if account == nil || account.ID == "" {
		return nil, errors.New("pgstore: account id is required")
	}

	query := `UPDATE accounts SET
		email = $2, password_hash = $3, full_name = $4, phone = $5, membership = $6, role = $7,
		pref_email = $8, pref_sms = $9, pref_newsletter = $10, verified = $11,
		verification_hash = $12, verification_expires_at = $13,
		reset_hash = $14, reset_expires_at = $15,
		updated_at = $16, version = version + 1
		WHERE id = $1 AND version = $17
		RETURNING ` + accountColumns

	a := account
	acc, err := scanAccount(s.db.QueryRowContext(ctx, query,
		a.ID, strings.ToLower(strings.TrimSpace(a.Email)), a.PasswordHash, a.FullName, a.Phone,
		string(a.Membership), a.Role,
		a.Preferences.EmailNotifications, a.Preferences.SMSNotifications, a.Preferences.Newsletter,
		a.Verified,
		nullString(a.VerificationTokenHash), nullTime(a.VerificationExpiresAt),
		nullString(a.ResetTokenHash), nullTime(a.ResetExpiresAt),
		a.UpdatedAt, a.Version,
	))
	switch {
	case err == nil:
		return acc, nil
	case isUniqueViolation(err):
		return nil, carauth.ErrDuplicateAccount
	case errors.Is(err, carauth.ErrAccountNotFound):
		return nil, s.missingOrStale(ctx, a.ID)
	default:
		return nil, err
	}
}

// missingOrStale tells a deleted row from a version mismatch after a
// guarded write matched nothing.
func (s *Store) missingOrStale(ctx context.Context, id string) error {
	var version int64
	err := s.db.QueryRowContext(ctx, `SELECT version FROM accounts WHERE id = $1`, id).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return carauth.ErrAccountNotFound
	case err != nil:
		return unavailable(err)
	default:
		return carauth.ErrStaleAccount
	}
}

// FindByToken returns the account holding an unexpired digest of kind.
func (s *Store) FindByToken(ctx context.Context, kind carauth.TokenKind, tokenHash string, now time.Time) (*carauth.Account, error) {
	if tokenHash == "" {
		return nil, carauth.ErrAccountNotFound
	}

	var query string
	switch kind {
	case carauth.TokenVerification:
		query = `SELECT ` + accountColumns + ` FROM accounts WHERE verification_hash = $1 AND verification_expires_at > $2`
	case carauth.TokenReset:
		query = `SELECT ` + accountColumns + ` FROM accounts WHERE reset_hash = $1 AND reset_expires_at > $2`
	default:
		return nil, carauth.ErrAccountNotFound
	}
	return scanAccount(s.db.QueryRowContext(ctx, query, tokenHash, now))
}

// CompareAndSwapLockout writes next only if the stored pair equals old.
func (s *Store) CompareAndSwapLockout(ctx context.Context, id string, old, next carauth.LockoutState) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET failed_attempts = $2, lock_until = $3
		WHERE id = $1 AND failed_attempts = $4 AND lock_until IS NOT DISTINCT FROM $5`,
		id, next.FailedAttempts, nullTime(next.LockUntil), old.FailedAttempts, nullTime(old.LockUntil),
	)
	if err != nil {
		return false, unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable(err)
	}
	if n == 1 {
		return true, nil
	}

	var exists bool
	err = s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, unavailable(err)
	}
	if !exists {
		return false, carauth.ErrAccountNotFound
	}
	return false, nil
}

// RecordLoginSuccess clears the lockout pair and stamps last_login_at.
func (s *Store) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET failed_attempts = 0, lock_until = NULL, last_login_at = $2 WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable(err)
	}
	if n == 0 {
		return carauth.ErrAccountNotFound
	}
	return nil
}
