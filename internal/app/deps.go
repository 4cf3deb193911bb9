package app

import (
	"context"
	"fmt"

	"github.com/mediatheque/backend/internal/auth"
	"github.com/mediatheque/backend/internal/config"
	"github.com/mediatheque/backend/internal/db"
	"github.com/mediatheque/backend/internal/handlers"
	"github.com/mediatheque/backend/internal/metadata"
	"github.com/mediatheque/backend/internal/middleware"
	"github.com/mediatheque/backend/internal/repositories"
	"github.com/mediatheque/backend/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, error) {
	users := repositories.NewPostgresUserRepository(pool)

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	identity := auth.Identity{Tokens: tokens, Users: users}

	// Covers stay nil when no bucket is configured; the upload endpoint
	// then reports the feature as unavailable.
	var covers handlers.CoverStore
	if cfg.ObjectStore.Bucket != "" {
		store, err := storage.NewS3CoverStore(ctx, cfg.ObjectStore)
		if err != nil {
			return handlers.Dependencies{}, fmt.Errorf("configure cover store: %w", err)
		}
		covers = store
	}

	return handlers.Dependencies{
		Users:       users,
		Libraries:   repositories.NewPostgresLibraryRepository(pool),
		Media:       repositories.NewPostgresMediaRepository(pool),
		Genres:      repositories.NewPostgresGenreRepository(pool),
		Franchises:  repositories.NewPostgresFranchiseRepository(pool),
		Persons:     repositories.NewPostgresPersonRepository(pool),
		Tokens:      tokens,
		Requester:   identity,
		AuthLimiter: middleware.NewIPRateLimiter(cfg.AuthRateRequests, cfg.AuthRateWindow, cfg.AuthRateBurst, cfg.AuthRateWindow*10),
		Covers:      covers,
		Metadata:    metadata.NewTMDBClient(cfg.TMDBAPIKey, cfg.TMDBBaseURL),
	}, nil
}
