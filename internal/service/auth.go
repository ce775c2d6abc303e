package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/clinical-intake/internal/audit"
	"github.com/iliyamo/clinical-intake/internal/model"
	"github.com/iliyamo/clinical-intake/internal/repository"
	"github.com/iliyamo/clinical-intake/internal/utils"
)

// UserStore is the subset of the user repository the services need.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (model.User, error)
	GetByID(ctx context.Context, id int64) (model.User, error)
}

// LoginResult is what a successful login hands back to the client.
type LoginResult struct {
	Token     string
	Expires   time.Time
	Principal model.Principal
}

// AuthService exchanges credentials for signed access tokens.
type AuthService struct {
	users  UserStore
	secret string
	ttl    time.Duration
	audit  Auditor

	// verify compares a stored hash with a plaintext password.
	verify func(hash, plain string) (bool, error)
}

func NewAuthService(users UserStore, secret string, ttl time.Duration, auditor Auditor) *AuthService {
	return &AuthService{
		users:  users,
		secret: secret,
		ttl:    ttl,
		audit:  auditor,
		verify: utils.VerifyPassword,
	}
}

// Login checks the credentials and issues a token carrying the user's id,
// username and role string. Unknown users and wrong passwords produce the
// same error.
func (s *AuthService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return LoginResult{}, ErrValidation
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	ok, err := s.verify(u.PasswordHash, password)
	if err != nil {
		return LoginResult{}, fmt.Errorf("user %d: %w", u.ID, err)
	}
	if !ok {
		return LoginResult{}, ErrInvalidCredentials
	}

	tok, err := utils.NewAccessToken(s.secret, u.ID, u.Username, u.Role, s.ttl)
	if err != nil {
		return LoginResult{}, err
	}
	p := model.PrincipalOf(u)
	s.audit.Record(p, audit.ActionUserLogin, nil)
	return LoginResult{Token: tok.Token, Expires: tok.Exp, Principal: p}, nil
}

// Me reloads the caller's user record so a deleted account is noticed even
// while its token is still valid.
func (s *AuthService) Me(ctx context.Context, actor model.Principal) (model.Principal, error) {
	u, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.Principal{}, ErrNotFound
		}
		return model.Principal{}, err
	}
	return model.PrincipalOf(u), nil
}
