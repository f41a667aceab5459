package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidName    = errors.New("login name must be ascii letters, digits, or underscores")
	ErrAccountExists  = errors.New("account already exists")
	ErrInvalidLogin   = errors.New("invalid login or password")
	ErrInvalidSession = errors.New("invalid or expired session")
	ErrWeakPassword   = errors.New("password is too short")
)

// MinPasswordLen is the minimum accepted password length.
const MinPasswordLen = 13

// Querier is the database access accounts functions need. Both pgx
// transactions and pools satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Account struct {
	ID    uuid.UUID
	Login string
}

// ValidateName accepts non-empty names made of ascii alphanumerics and
// underscores. Uniqueness is checked case-insensitively at insert time.
func ValidateName(login string) error {
	if login == "" {
		return ErrInvalidName
	}
	for _, c := range login {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_':
		default:
			return ErrInvalidName
		}
	}
	return nil
}

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func VerifyPassword(hash, password string) error {
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return ErrInvalidLogin
	}
	return nil
}

// Create inserts a new account with credentials but no password yet;
// call SetPassword before the account can log in.
func Create(ctx context.Context, q Querier, login string) (Account, error) {
	if err := ValidateName(login); err != nil {
		return Account{}, err
	}

	id, err := createBase(ctx, q)
	if err != nil {
		// Retry once in the absurdly unlikely case of a v4 collision.
		id, err = createBase(ctx, q)
		if err != nil {
			return Account{}, err
		}
	}

	if _, err := q.Exec(ctx,
		`INSERT INTO accounts_locals (id, login) VALUES ($1, $2)`, id, login); err != nil {
		return Account{}, ErrAccountExists
	}
	return Account{ID: id, Login: login}, nil
}

func createBase(ctx context.Context, q Querier) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.QueryRow(ctx, `INSERT INTO accounts DEFAULT VALUES RETURNING id`).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create account: %w", err)
	}
	return id, nil
}

// SetPassword hashes and stores a new password for the account.
func SetPassword(ctx context.Context, q Querier, id uuid.UUID, password string) error {
	if len(password) < MinPasswordLen {
		return ErrWeakPassword
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx,
		`UPDATE accounts_locals SET password_hash = $2, updated_at = now()
		 WHERE removed_at IS NULL AND id = $1`, id, hash)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidLogin
	}
	return nil
}

// ClearPassword removes the password, making the account unable to log
// in until a new one is set.
func ClearPassword(ctx context.Context, q Querier, id uuid.UUID) error {
	tag, err := q.Exec(ctx,
		`UPDATE accounts_locals SET password_hash = NULL, updated_at = now()
		 WHERE removed_at IS NULL AND id = $1`, id)
	if err != nil {
		return fmt.Errorf("clear password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidLogin
	}
	return nil
}

// Login verifies credentials and returns the account. Every failure
// mode collapses into ErrInvalidLogin so callers cannot probe which
// part was wrong.
func Login(ctx context.Context, q Querier, login, password string) (Account, error) {
	var (
		id   uuid.UUID
		hash *string
	)
	err := q.QueryRow(ctx,
		`SELECT id, password_hash FROM accounts_locals
		 WHERE removed_at IS NULL AND lower(login) = lower($1)`, login).Scan(&id, &hash)
	if err != nil || hash == nil {
		return Account{}, ErrInvalidLogin
	}
	if err := VerifyPassword(*hash, password); err != nil {
		return Account{}, ErrInvalidLogin
	}
	return Account{ID: id, Login: login}, nil
}

// LoginSession verifies credentials and mints a session valid for the
// given duration.
func LoginSession(ctx context.Context, q Querier, login, password string, validFor time.Duration) (Session, error) {
	acct, err := Login(ctx, q, login, password)
	if err != nil {
		return Session{}, err
	}
	s := Session{ID: acct.ID, Token: uuid.New()}
	if _, err := q.Exec(ctx,
		`INSERT INTO accounts_sessions (id, token, valid_until) VALUES ($1, $2, $3)`,
		s.ID, s.Token, time.Now().UTC().Add(validFor)); err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

// DeleteSession revokes one session (logout).
func DeleteSession(ctx context.Context, q Querier, s Session) error {
	if _, err := q.Exec(ctx,
		`DELETE FROM accounts_sessions WHERE id = $1 AND token = $2`, s.ID, s.Token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions past their validity window and
// reports how many were deleted.
func DeleteExpiredSessions(ctx context.Context, q Querier) (int64, error) {
	tag, err := q.Exec(ctx, `DELETE FROM accounts_sessions WHERE valid_until <= now()`)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Session is a bearer credential: account id plus an opaque token.
type Session struct {
	ID    uuid.UUID
	Token uuid.UUID
}

func (s Session) String() string { return s.ID.String() + "|" + s.Token.String() }

// ParseSession parses the "id|token" cookie form.
func ParseSession(raw string) (Session, error) {
	idStr, tokenStr, ok := strings.Cut(raw, "|")
	if !ok {
		return Session{}, fmt.Errorf("parse session: missing separator")
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return Session{}, fmt.Errorf("parse session id: %w", err)
	}
	token, err := uuid.Parse(tokenStr)
	if err != nil {
		return Session{}, fmt.Errorf("parse session token: %w", err)
	}
	return Session{ID: id, Token: token}, nil
}

// Validate checks the session exists and is still inside its validity
// window.
func (s Session) Validate(ctx context.Context, q Querier) error {
	var one int
	err := q.QueryRow(ctx,
		`SELECT 1 FROM accounts_sessions WHERE id = $1 AND token = $2 AND valid_until > now()`,
		s.ID, s.Token).Scan(&one)
	if err != nil {
		return ErrInvalidSession
	}
	return nil
}
