package auth

import (
	"errors"
	"fmt"

	"leadgen-sync/internal/entity"

	"github.com/supabase-community/gotrue-go/types"
	"github.com/supabase-community/supabase-go"
)

// IdentityProvider is the remote half of the auth subsystem.
type IdentityProvider interface {
	SignIn(email, password string) (*Session, error)
	Refresh(refreshToken string) (*Session, error)
	SignOut(accessToken string) error
}

type SupabaseProvider struct {
	client *supabase.Client
}

func NewSupabaseProvider(url, anonKey string) (*SupabaseProvider, error) {
	if url == "" || anonKey == "" {
		return nil, errors.New("supabase url and anon key are required")
	}

	client, err := supabase.NewClient(url, anonKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &SupabaseProvider{client: client}, nil
}

func (p *SupabaseProvider) SignIn(email, password string) (*Session, error) {
	res, err := p.client.Auth.SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, err
	}
	return fromTokenResponse(res), nil
}

func (p *SupabaseProvider) Refresh(refreshToken string) (*Session, error) {
	res, err := p.client.Auth.RefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}
	return fromTokenResponse(res), nil
}

func (p *SupabaseProvider) SignOut(accessToken string) error {
	return p.client.Auth.WithToken(accessToken).Logout()
}

func fromTokenResponse(res *types.TokenResponse) *Session {
	return &Session{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    res.ExpiresAt,
		User: entity.User{
			Id:    res.User.ID.String(),
			Email: res.User.Email,
		},
	}
}
