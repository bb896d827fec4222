package application

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stackbound/identity-api/internal/domain/entity"
	repo "github.com/stackbound/identity-api/internal/domain/repository"
	"github.com/stackbound/identity-api/pkg/helpers"
)

var (
	ErrDuplicateIdentity  = errors.New("identity already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrIdentityNotFound   = errors.New("identity not found")
)

// Service composes the store, the hasher and the token manager into the
// register/login/profile/verify operations. It holds no per-request state.
type Service struct {
	Repo       repo.IdentityRepository
	JWT        *helpers.JWTManager
	Logger     *logrus.Logger
	BcryptCost int
}

func NewService(r repo.IdentityRepository, jwt *helpers.JWTManager, logger *logrus.Logger, bcryptCost int) *Service {
	return &Service{Repo: r, JWT: jwt, Logger: logger, BcryptCost: bcryptCost}
}

// Credential is a freshly issued bearer token with its expiry.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

func (s *Service) issue(u *entity.Identity) (Credential, error) {
	token, exp, err := s.JWT.Generate(u.ID, u.Email)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("identity_id", u.ID).Error("token generation failed")
		}
		return Credential{}, err
	}
	return Credential{Token: token, ExpiresAt: exp}, nil
}

// Register hashes the password, stores a new identity and issues a token.
// The pre-check gives a fast duplicate answer; the store's Create re-checks
// under its mutation lock, so two racing registrations still end with a
// single record.
func (s *Service) Register(ctx context.Context, email, password, name string) (*entity.Identity, Credential, error) {
	email = entity.NormalizeEmail(email)

	if _, err := s.Repo.GetByEmail(ctx, email); err == nil {
		return nil, Credential{}, ErrDuplicateIdentity
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, Credential{}, err
	}

	hash, err := helpers.HashPassword(password, s.BcryptCost)
	if err != nil {
		return nil, Credential{}, err
	}

	u, err := s.Repo.Create(ctx, entity.Identity{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
	})
	if err != nil {
		if errors.Is(err, repo.ErrDuplicateEmail) {
			return nil, Credential{}, ErrDuplicateIdentity
		}
		return nil, Credential{}, err
	}

	cred, err := s.issue(u)
	if err != nil {
		return nil, Credential{}, err
	}
	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{"identity_id": u.ID}).Info("identity registered")
	}
	return u, cred, nil
}

// Login validates credentials and issues a token. Unknown email and wrong
// password collapse into the same error so callers cannot enumerate
// accounts.
func (s *Service) Login(ctx context.Context, email, password string) (*entity.Identity, Credential, error) {
	u, err := s.Repo.GetByEmail(ctx, entity.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, Credential{}, ErrInvalidCredentials
		}
		return nil, Credential{}, err
	}
	if !helpers.CheckPassword(u.PasswordHash, password) {
		return nil, Credential{}, ErrInvalidCredentials
	}

	cred, err := s.issue(u)
	if err != nil {
		return nil, Credential{}, err
	}
	return u, cred, nil
}

// GetProfile fetches the identity behind a verified token. The identity can
// be missing when the token outlives the record.
func (s *Service) GetProfile(ctx context.Context, identityID string) (*entity.Identity, error) {
	u, err := s.Repo.GetByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}
	return u, nil
}

// UpdateProfileInput carries the allow-listed mutable fields. Email and
// password cannot be changed through profile updates.
type UpdateProfileInput struct {
	Name string
}

func (s *Service) UpdateProfile(ctx context.Context, identityID string, in UpdateProfileInput) (*entity.Identity, error) {
	var fields entity.ProfileUpdate
	if in.Name != "" {
		fields.Name = &in.Name
	}

	u, err := s.Repo.Update(ctx, identityID, fields)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}
	return u, nil
}
