package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mediatheque/backend/internal/config"
)

type fakePool struct{}

func (fakePool) Acquire(context.Context) (*pgxpool.Conn, error) {
	return nil, errors.New("not implemented")
}

func (fakePool) Close() {}

func TestBuildDependencies(t *testing.T) {
	cfg := config.Config{
		JWTSecret:        "test-secret",
		TokenTTL:         24 * time.Hour,
		AuthRateRequests: 10,
		AuthRateWindow:   time.Minute,
		AuthRateBurst:    5,
	}

	deps, err := buildDependencies(context.Background(), fakePool{}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if deps.Users == nil {
		t.Fatal("expected user repository to be configured")
	}
	if deps.Libraries == nil || deps.Media == nil {
		t.Fatal("expected catalog repositories to be configured")
	}
	if deps.Genres == nil || deps.Franchises == nil || deps.Persons == nil {
		t.Fatal("expected taxonomy repositories to be configured")
	}
	if deps.Tokens == nil || deps.Requester == nil {
		t.Fatal("expected auth collaborators to be configured")
	}
	if deps.AuthLimiter == nil {
		t.Fatal("expected auth rate limiter to be configured")
	}
	if deps.Covers != nil {
		t.Fatal("expected cover store to stay unset without a bucket")
	}
	if deps.Metadata == nil {
		t.Fatal("expected metadata provider to be configured")
	}
}
