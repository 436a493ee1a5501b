package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"

	"github.com/diagnosis/streetink-bookings/internal/domain"
	"github.com/diagnosis/streetink-bookings/internal/repo"
	"github.com/diagnosis/streetink-bookings/pkg/auth"
	"github.com/diagnosis/streetink-bookings/pkg/logger"
)

type AuthService interface {
	Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error)
	// SeedArtist creates the artist account unless the username is taken.
	SeedArtist(ctx context.Context, a domain.TattooArtist, password string) (domain.TattooArtist, error)
}

type authService struct {
	artists  repo.Artists
	secret   string
	tokenTTL time.Duration
}

func NewAuthService(artists repo.Artists, secret string, tokenTTL time.Duration) AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &authService{artists: artists, secret: secret, tokenTTL: tokenTTL}
}

func (s *authService) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return domain.LoginResponse{}, fmt.Errorf("%w: username and password are required", domain.ErrValidation)
	}

	artist, err := s.artists.GetByUsername(ctx, username)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.LoginResponse{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.LoginResponse{}, fmt.Errorf("find artist: %w", err)
	}

	valid, err := argon2id.ComparePasswordAndHash(req.Password, artist.PasswordHash)
	if err != nil {
		return domain.LoginResponse{}, fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		logger.WarnContext(ctx, "Login rejected", "username", username)
		return domain.LoginResponse{}, domain.ErrInvalidCredentials
	}

	token, err := auth.NewAccessToken(artist.ID, artist.Username, auth.RoleArtist, s.secret, s.tokenTTL)
	if err != nil {
		return domain.LoginResponse{}, fmt.Errorf("create access token: %w", err)
	}

	logger.InfoContext(ctx, "Artist logged in", "artist_id", artist.ID)
	return domain.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.tokenTTL.Seconds()),
		Artist:      artist,
	}, nil
}

func (s *authService) SeedArtist(ctx context.Context, a domain.TattooArtist, password string) (domain.TattooArtist, error) {
	a.Username = strings.TrimSpace(a.Username)
	if a.Username == "" || password == "" {
		return domain.TattooArtist{}, fmt.Errorf("%w: username and password are required", domain.ErrValidation)
	}

	existing, err := s.artists.GetByUsername(ctx, a.Username)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.TattooArtist{}, fmt.Errorf("find artist: %w", err)
	}

	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return domain.TattooArtist{}, fmt.Errorf("hash password: %w", err)
	}
	a.PasswordHash = hash
	a.Email = domain.NormalizeEmail(a.Email)

	created, err := s.artists.Create(ctx, a)
	if err != nil {
		return domain.TattooArtist{}, fmt.Errorf("create artist: %w", err)
	}
	logger.InfoContext(ctx, "Artist seeded", "artist_id", created.ID, "username", created.Username)
	return created, nil
}
