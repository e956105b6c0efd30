// Package auth signs users in through an OAuth identity provider and issues
// the HS256 session tokens the API expects.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Scriptzstarling/meme-Forge/config"
	"github.com/Scriptzstarling/meme-Forge/core"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	stateCookie = "oauthstate"
	tokenTTL    = 7 * 24 * time.Hour
)

// AppClaims represents the custom claims for the JWT.
type AppClaims struct {
	jwt.RegisteredClaims
	Login     string `json:"login"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl"`
	Name      string `json:"name"`
}

// identityProvider is one configured login flow.
type identityProvider interface {
	Name() string
	AuthCodeURL(state string) string
	// Identify exchanges the callback code and returns the signed-in user.
	Identify(ctx context.Context, code string) (*core.User, error)
}

var (
	active    identityProvider
	jwtSecret []byte
)

// InitAuth picks the login provider (OIDC wins over GitHub) and the JWT
// signing secret. Without a provider the login routes answer 500.
func InitAuth(cfg config.Auth) {
	active = nil
	switch {
	case cfg.OIDCConfigured():
		p, err := newOIDCProvider(context.Background(), cfg.OIDC)
		if err != nil {
			logrus.WithField("error", err).Error("Failed to create OIDC provider")
			break
		}
		active = p
	case cfg.GitHubConfigured():
		active = newGitHubProvider(cfg.GitHub)
	default:
		logrus.Warn("No authentication provider configured.")
	}
	if active != nil {
		logrus.WithField("provider", active.Name()).Info("Authentication provider initialized")
	}

	SetSecret(cfg.JWTSecret)
	if len(jwtSecret) == 0 {
		logrus.Warn("JWT_SECRET is not set. Authentication will not work.")
	}
}

// SetSecret replaces the HS256 signing secret.
func SetSecret(secret string) {
	jwtSecret = []byte(secret)
}

// HandleLogin redirects to the provider with a fresh state cookie.
func HandleLogin(w http.ResponseWriter, r *http.Request) {
	if active == nil {
		http.Error(w, "Authentication not configured", http.StatusInternalServerError)
		return
	}
	state, err := newState()
	if err != nil {
		http.Error(w, "Failed to generate login state", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		Secure:   r.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, active.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// HandleCallback finishes the login and redirects to the app with the issued
// token. Every failure sends the user back to the app without one.
func HandleCallback(w http.ResponseWriter, r *http.Request) {
	if active == nil {
		http.Error(w, "Authentication not configured", http.StatusInternalServerError)
		return
	}
	log := logrus.WithField("provider", active.Name())

	if !validState(r) {
		log.Warn("invalid oauth state")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}
	code := r.FormValue("code")
	if code == "" {
		log.Error("no code in callback")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	user, err := active.Identify(r.Context(), code)
	if err != nil {
		log.WithField("error", err).Error("failed to identify user")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	token, err := IssueToken(user)
	if err != nil {
		log.WithField("error", err).Error("failed to create JWT")
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}
	log.WithField("subject", user.Subject).Info("user signed in")
	http.Redirect(w, r, "/?token="+url.QueryEscape(token), http.StatusTemporaryRedirect)
}

func newState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// validState checks the state query parameter against the cookie set at
// login.
func validState(r *http.Request) bool {
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" {
		return false
	}
	return r.FormValue("state") == cookie.Value
}

type githubProvider struct {
	oauth   *oauth2.Config
	userURL string
}

func newGitHubProvider(client config.OAuthClient) *githubProvider {
	return &githubProvider{
		oauth: &oauth2.Config{
			ClientID:     client.ClientID,
			ClientSecret: client.ClientSecret,
			RedirectURL:  client.RedirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		userURL: "https://api.github.com/user",
	}
}

func (p *githubProvider) Name() string { return "github" }

func (p *githubProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

func (p *githubProvider) Identify(ctx context.Context, code string) (*core.User, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	resp, err := p.oauth.Client(ctx, token).Get(p.userURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get user from github: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get user from github: status %d", resp.StatusCode)
	}

	var githubUser struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
		Name      string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&githubUser); err != nil {
		return nil, fmt.Errorf("failed to decode github user: %w", err)
	}
	if githubUser.ID == 0 {
		return nil, errors.New("github user has no id")
	}

	return &core.User{
		Subject:   fmt.Sprintf("github:%d", githubUser.ID),
		Login:     githubUser.Login,
		Email:     githubUser.Email,
		AvatarURL: githubUser.AvatarURL,
		Name:      githubUser.Name,
	}, nil
}

type oidcProvider struct {
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

func newOIDCProvider(ctx context.Context, client config.OAuthClient) (*oidcProvider, error) {
	if client.ClientSecret == "" {
		return nil, errors.New("OIDC client secret is not set")
	}
	provider, err := oidc.NewProvider(ctx, client.IssuerURL)
	if err != nil {
		return nil, err
	}
	return &oidcProvider{
		oauth: &oauth2.Config{
			ClientID:     client.ClientID,
			ClientSecret: client.ClientSecret,
			RedirectURL:  client.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
			Endpoint:     provider.Endpoint(),
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: client.ClientID}),
	}, nil
}

func (p *oidcProvider) Name() string { return "oidc" }

func (p *oidcProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (p *oidcProvider) Identify(ctx context.Context, code string) (*core.User, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, errors.New("no id_token in token response")
	}
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims struct {
		Email             string `json:"email"`
		Name              string `json:"name"`
		PreferredUsername string `json:"preferred_username"`
		Picture           string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to extract claims from ID token: %w", err)
	}

	user := &core.User{
		Subject:   idToken.Subject,
		Login:     claims.PreferredUsername,
		Email:     claims.Email,
		AvatarURL: claims.Picture,
		Name:      claims.Name,
	}
	if user.Login == "" {
		user.Login = user.Email
	}
	return user, nil
}

// IssueToken signs a one-week HS256 token for user.
func IssueToken(user *core.User) (string, error) {
	now := time.Now()
	claims := AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Login:     user.Login,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
		Name:      user.Name,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret)
}

// ParseJWT verifies a token issued by IssueToken.
func ParseJWT(tokenString string) (*AppClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*AppClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}
