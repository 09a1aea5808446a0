package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"logq/internal/auth"
)

func (s *Store) Token(ctx context.Context, key string) (auth.CachedToken, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		tok    auth.CachedToken
		expiry sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT access_token, refresh_token, expiry, account FROM tokens WHERE cache_key = ?
	`, key).Scan(&tok.AccessToken, &tok.RefreshToken, &expiry, &tok.Account)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.CachedToken{}, false, nil
		}
		return auth.CachedToken{}, false, fmt.Errorf("read token %s: %w", key, err)
	}
	if expiry.Valid {
		tok.Expiry = time.Unix(expiry.Int64, 0)
	}
	return tok, true, nil
}

func (s *Store) PutToken(ctx context.Context, key string, tok auth.CachedToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expiry any
	if !tok.Expiry.IsZero() {
		expiry = tok.Expiry.Unix()
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO tokens(cache_key, access_token, refresh_token, expiry, account)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			access_token=excluded.access_token,
			refresh_token=excluded.refresh_token,
			expiry=excluded.expiry,
			account=excluded.account
	`, key, tok.AccessToken, tok.RefreshToken, expiry, tok.Account); err != nil {
		return fmt.Errorf("write token %s: %w", key, err)
	}
	return nil
}

// DeleteTokens signs out by dropping every cached token and the session.
func (s *Store) DeleteTokens(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM tokens`)
	if err != nil {
		return 0, fmt.Errorf("delete tokens: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
