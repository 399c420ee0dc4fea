// Package auth logs users in against the record store, registers them and
// verifies bearer tokens on protected requests.
package auth

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"hopperGateway/internal/apperrors"
	"hopperGateway/internal/logger"
	"hopperGateway/internal/recordstore"
	"hopperGateway/models"
	"hopperGateway/repository"
)

// Verifier turns a bearer token into a Principal.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

type Service struct {
	store  recordstore.Store
	users  repository.UserRepositoryI
	logger logger.Logger
	now    func() time.Time
}

var _ Verifier = (*Service)(nil)

func NewService(store recordstore.Store, users repository.UserRepositoryI, log logger.Logger) *Service {
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &Service{store: store, users: users, logger: log, now: time.Now}
}

// Login authenticates with email and password and returns the session token
// with a fixed projection of the user record.
func (s *Service) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	res, err := s.store.AuthWithPassword(ctx, email, password)
	if err != nil {
		if apperrors.IsAuthentication(err) {
			s.logger.InfoWithContext(ctx, "login rejected", zap.String("identity", email))
		}
		return nil, err
	}
	var rec models.AuthRecord
	if err := json.Unmarshal(res.Record, &rec); err != nil || rec.ID == "" {
		return nil, apperrors.Unauthenticated("Invalid credentials", err)
	}
	return &models.AuthResponse{Token: res.Token, Record: rec}, nil
}

// Registered is the answer of a successful sign-up.
type Registered struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

// Register creates an account. A password mismatch is rejected before the
// record store is contacted.
func (s *Service) Register(ctx context.Context, in models.Registration) (*Registered, error) {
	if in.Password != in.ConfirmPassword {
		return nil, apperrors.Validation("Password and confirm password do not match")
	}
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, apperrors.Validation("email and password are required")
	}
	u, err := s.users.Create(ctx, models.UserInput{
		Username:        in.Username,
		Email:           in.Email,
		Password:        in.Password,
		PasswordConfirm: in.ConfirmPassword,
		Role:            in.Role,
	}, false)
	if err != nil {
		return nil, err
	}
	return &Registered{Message: "User registered", UserID: u.ID}, nil
}

// Verify checks the token locally for structure and expiry, then confirms it
// with the record store's auth-refresh. The store decides validity; the local
// check only avoids a round trip for tokens that cannot be valid.
func (s *Service) Verify(ctx context.Context, token string) (*Principal, error) {
	if err := s.precheck(token); err != nil {
		return nil, err
	}
	res, err := s.store.AuthRefresh(ctx, token)
	if err != nil {
		if apperrors.IsAuthentication(err) {
			return nil, err
		}
		return nil, apperrors.Unauthenticated("authentication failed", err)
	}
	var u models.User
	if err := json.Unmarshal(res.Record, &u); err != nil || u.ID == "" {
		return nil, apperrors.Unauthenticated("authentication failed", err)
	}
	return &Principal{Token: res.Token, User: u}, nil
}

func (s *Service) precheck(token string) error {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return apperrors.Unauthenticated("invalid or expired token", err)
	}
	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(s.now()) {
		return apperrors.Unauthenticated("invalid or expired token", nil)
	}
	return nil
}
