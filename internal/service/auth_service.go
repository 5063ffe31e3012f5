package service

import (
	"crypto/subtle"
	"time"

	"streamvault/config"
	"streamvault/internal/auth"
	"streamvault/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	cfg *config.Config
	now func() time.Time
}

func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{cfg: cfg, now: time.Now}
}

type LoginResult struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Login checks the console operator's credentials and issues a bearer token.
func (s *AuthService) Login(username, password string) (*LoginResult, error) {
	admin := s.cfg.Admin
	if admin.PasswordHash == "" {
		return nil, ErrInvalidCreds
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(admin.Username)) == 1
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil || !userOK {
		return nil, ErrInvalidCreds
	}
	tok, exp, err := auth.GenerateAccessToken(&s.cfg.JWT, admin.Username, domain.RoleAdmin, s.now())
	if err != nil {
		return nil, err
	}
	return &LoginResult{AccessToken: tok, ExpiresAt: exp}, nil
}
