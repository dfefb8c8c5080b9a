package auth

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/examconnect/portal-client/internal/api"
	"github.com/examconnect/portal-client/internal/model"
)

// Authenticator drives the login/register/logout flow against the portal
// and keeps a Session up to date.
type Authenticator struct {
	api     *api.Client
	session *Session
	log     zerolog.Logger
}

// NewAuthenticator wires an Authenticator to a client and session. The
// client should already use the same session as its token source.
func NewAuthenticator(client *api.Client, session *Session, log zerolog.Logger) *Authenticator {
	return &Authenticator{
		api:     client,
		session: session,
		log:     log.With().Str("component", "auth").Logger(),
	}
}

// Login authenticates and installs the resulting token and profile.
func (a *Authenticator) Login(ctx context.Context, email, password string) (*model.Profile, error) {
	resp, err := a.api.Login(ctx, model.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	a.session.Set(resp.AccessToken, resp.User)
	a.log.Info().Str("email", email).Msg("Logged in")
	return resp.User, nil
}

// Register creates an account and immediately logs it in, matching the
// portal's register-then-login flow.
func (a *Authenticator) Register(ctx context.Context, req model.RegisterRequest) (*model.Profile, error) {
	if err := a.api.Register(ctx, req); err != nil {
		return nil, err
	}
	return a.Login(ctx, req.Email, req.Password)
}

// Refresh re-fetches the profile for the current token.
func (a *Authenticator) Refresh(ctx context.Context) (*model.Profile, error) {
	profile, err := a.api.Me(ctx)
	if err != nil {
		return nil, err
	}
	a.session.Set(a.session.Token(), profile)
	return profile, nil
}

// Logout clears the session.
func (a *Authenticator) Logout() {
	a.session.Clear()
	a.log.Info().Msg("Logged out")
}
