package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	silentErr      error
	interactiveErr error
	silentCalls    int
	interCalls     int
}

func (f *fakeProvider) AcquireSilent(context.Context, []string) (Credential, error) {
	f.silentCalls++
	if f.silentErr != nil {
		return Credential{}, f.silentErr
	}
	return Credential{Token: "silent"}, nil
}

func (f *fakeProvider) AcquireInteractive(context.Context, []string) (Credential, error) {
	f.interCalls++
	if f.interactiveErr != nil {
		return Credential{}, f.interactiveErr
	}
	return Credential{Token: "interactive"}, nil
}

func TestAcquire(t *testing.T) {
	boom := errors.New("network down")
	tests := []struct {
		name           string
		silentErr      error
		interactiveErr error
		wantToken      string
		wantErr        error
		wantInter      int
	}{
		{name: "silent succeeds", wantToken: "silent"},
		{
			name:      "interaction required falls back",
			silentErr: fmt.Errorf("refresh rejected: %w", ErrInteractionRequired),
			wantToken: "interactive",
			wantInter: 1,
		},
		{
			name:           "interactive redirect is returned as-is",
			silentErr:      ErrInteractionRequired,
			interactiveErr: ErrRedirected,
			wantErr:        ErrRedirected,
			wantInter:      1,
		},
		{
			name:      "other failures propagate without fallback",
			silentErr: boom,
			wantErr:   boom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{silentErr: tt.silentErr, interactiveErr: tt.interactiveErr}
			cred, err := Acquire(context.Background(), p, []string{LogAnalyticsScope})
			assert.Equal(t, 1, p.silentCalls)
			assert.Equal(t, tt.wantInter, p.interCalls)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, cred.Token)
		})
	}
}

func TestIsRedirect(t *testing.T) {
	assert.True(t, IsRedirect(fmt.Errorf("query: %w", ErrRedirected)))
	assert.False(t, IsRedirect(ErrInteractionRequired))
}

func TestCacheKeyIgnoresOrder(t *testing.T) {
	assert.Equal(t, CacheKey([]string{"b", "a"}), CacheKey([]string{"a", "b"}))
}

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)
	return s
}

func TestStaticProvider(t *testing.T) {
	now := time.Now()
	valid := signed(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix(), "upn": "ops@example.com"})
	expired := signed(t, jwt.MapClaims{"exp": now.Add(-time.Hour).Unix()})

	p := NewStaticProvider(valid)
	cred, err := p.AcquireSilent(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, valid, cred.Token)
	assert.Equal(t, "ops@example.com", cred.Account)
	assert.WithinDuration(t, now.Add(time.Hour), cred.ExpiresAt, 2*time.Second)

	_, err = NewStaticProvider(expired).AcquireSilent(context.Background(), nil)
	require.ErrorIs(t, err, ErrInteractionRequired)

	_, err = NewStaticProvider("").AcquireSilent(context.Background(), nil)
	require.ErrorIs(t, err, ErrInteractionRequired)

	_, err = p.AcquireInteractive(context.Background(), nil)
	require.ErrorIs(t, err, ErrRedirected)
}

func TestStaticProviderOpaqueToken(t *testing.T) {
	cred, err := NewStaticProvider("not-a-jwt").AcquireSilent(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "not-a-jwt", cred.Token)
	assert.True(t, cred.ExpiresAt.IsZero())
}
