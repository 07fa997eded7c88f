package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/openpass-dev/openpass/internal/oidc/codec"
	"github.com/openpass-dev/openpass/internal/oidc/domain"
	"github.com/openpass-dev/openpass/internal/oidc/pkce"
	"github.com/openpass-dev/openpass/internal/oidc/store"
	"github.com/openpass-dev/openpass/pkg/cryptox"
	"github.com/openpass-dev/openpass/pkg/idx"
	"github.com/openpass-dev/openpass/pkg/slogx"
)

// DefaultAuthorizationCodeTTL bounds how long an issued code stays
// redeemable.
const DefaultAuthorizationCodeTTL = 10 * time.Minute

// AuthorizeService handles the front channel of the authorization code
// grant: request validation, resource-owner authentication, and code
// issuance.
type AuthorizeService struct {
	Store   store.Store
	Codec   *codec.Codec
	PKCE    *pkce.Registry
	CodeTTL time.Duration
	Hooks   Hooks
}

// AuthorizeRequest carries the raw query parameters of an authorize call.
type AuthorizeRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scopes              []string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// AuthorizationRequest is a validated authorize call awaiting the resource
// owner's authentication and approval decision. The caller attaches UserID
// and Approved, then hands it to CompleteAuthorizationRequest.
type AuthorizationRequest struct {
	Client              domain.Client
	RedirectURI         string
	Scopes              []string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string

	UserID   string
	Approved bool
}

// AuthorizeResult is the successful outcome of an authorize call: the
// encoded code plus the redirect target and echoed state.
type AuthorizeResult struct {
	Code        string
	RedirectURI string
	State       string
}

// ValidateAuthorizationRequest checks the request against the registered
// client, the scope registry, and PKCE policy. Public clients must supply
// a code challenge. The client and redirect URI are resolved first; for
// errors raised after both checked out, the returned AuthorizationRequest
// is non-nil and carries the validated redirect URI so the boundary can
// bounce the error back to the client. A nil request with an error means
// the redirect URI was never validated and must not be redirected to.
// A valid request stays pending until the caller completes it with a user
// and an approval decision.
func (s *AuthorizeService) ValidateAuthorizationRequest(ctx context.Context, req AuthorizeRequest) (*AuthorizationRequest, error) {
	l := slogx.FromContext(ctx)

	client, err := s.Store.Clients().GetClientByID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Warn("authorize request for unknown client", slog.String("client_id", req.ClientID))
			return nil, ErrInvalidClient
		}
		return nil, err
	}

	redirectURI, err := resolveRedirectURI(&client, req.RedirectURI)
	if err != nil {
		l.Warn("authorize request with bad redirect uri",
			slog.String("client_id", client.ID),
			slog.String("redirect_uri", req.RedirectURI),
		)
		return nil, err
	}

	ar := &AuthorizationRequest{
		Client:      client,
		RedirectURI: redirectURI,
		State:       req.State,
	}

	if !requestsCode(req.ResponseType) {
		return ar, fmt.Errorf("%w: %q", ErrUnsupportedResponseType, req.ResponseType)
	}

	if len(req.Scopes) == 0 {
		return ar, fmt.Errorf("%w: no scopes requested", ErrInvalidScope)
	}
	for _, name := range req.Scopes {
		if _, err := s.Store.Scopes().GetScopeByName(ctx, name); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ar, fmt.Errorf("%w: %s", ErrInvalidScope, name)
			}
			return nil, err
		}
	}
	if !client.AllowsScopes(req.Scopes) {
		return ar, fmt.Errorf("%w: scope not registered for client", ErrInvalidScope)
	}

	method := req.CodeChallengeMethod
	if req.CodeChallenge == "" {
		// PKCE is mandatory for public clients; confidential clients may
		// still opt in.
		if !client.Confidential() {
			return ar, fmt.Errorf("%w: code_challenge is required for public clients", ErrInvalidRequest)
		}
		method = ""
	} else {
		if method == "" {
			method = pkce.MethodPlain
		}
		if !s.PKCE.Supports(method) {
			return ar, fmt.Errorf("%w: unsupported code_challenge_method %q", ErrInvalidRequest, method)
		}
		if !pkce.ValidFormat(req.CodeChallenge) {
			return ar, fmt.Errorf("%w: malformed code_challenge", ErrInvalidRequest)
		}
	}

	ar.Scopes = req.Scopes
	ar.Nonce = req.Nonce
	ar.CodeChallenge = req.CodeChallenge
	ar.CodeChallengeMethod = method
	return ar, nil
}

// requestsCode reports whether a space-delimited response_type value asks
// for the code flow. Values naming code or id_token alongside other types
// are accepted; the response issued is always an authorization code.
func requestsCode(responseType string) bool {
	for _, part := range strings.Fields(responseType) {
		if part == "code" || part == "id_token" {
			return true
		}
	}
	return false
}

// Authenticate performs the interactive resource-owner login, including
// the TOTP step-up for users with MFA enabled.
func (s *AuthorizeService) Authenticate(ctx context.Context, username, password, otpCode string) (domain.User, error) {
	l := slogx.FromContext(ctx)

	if username == "" || password == "" {
		return domain.User{}, ErrLoginRequired
	}

	user, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}

	if err := cryptox.VerifySecret(password, user.PasswordHash); err != nil {
		l.Warn("login failed", slog.String("username", username))
		return domain.User{}, ErrInvalidCredentials
	}

	if user.MFARequired() {
		if otpCode == "" {
			return domain.User{}, ErrMFARequired
		}
		if !totp.Validate(otpCode, *user.TOTPSecret) {
			l.Warn("totp validation failed", slog.String("user_id", user.ID))
			return domain.User{}, ErrInvalidCredentials
		}
	}

	return user, nil
}

// CompleteAuthorizationRequest turns an approved request into an encrypted
// authorization code. A request without a user or without approval fails
// with ErrLoginRequired or ErrAccessDenied; the HTTP layer redirects those
// back to the client with state preserved.
func (s *AuthorizeService) CompleteAuthorizationRequest(ctx context.Context, ar *AuthorizationRequest) (AuthorizeResult, error) {
	l := slogx.FromContext(ctx)

	if ar.UserID == "" {
		return AuthorizeResult{}, ErrLoginRequired
	}
	if !ar.Approved {
		return AuthorizeResult{}, ErrAccessDenied
	}

	ttl := s.CodeTTL
	if ttl <= 0 {
		ttl = DefaultAuthorizationCodeTTL
	}

	now := time.Now()
	record := domain.AuthorizationCode{
		ID:        idx.New(),
		UserID:    ar.UserID,
		ClientID:  ar.Client.ID,
		Scopes:    ar.Scopes,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	code, err := s.Codec.Encode(domain.CodePayload{
		ClientID:            ar.Client.ID,
		RedirectURI:         ar.RedirectURI,
		AuthCodeID:          record.ID,
		Scopes:              ar.Scopes,
		UserID:              ar.UserID,
		ExpireTime:          record.ExpiresAt.Unix(),
		CodeChallenge:       ar.CodeChallenge,
		CodeChallengeMethod: ar.CodeChallengeMethod,
		Nonce:               ar.Nonce,
	})
	if err != nil {
		l.Error("failed to encode authorization code", slog.Any("error", err))
		return AuthorizeResult{}, err
	}

	if err := s.Store.AuthorizationCodes().CreateAuthorizationCode(ctx, record); err != nil {
		l.Error("failed to persist authorization code",
			slog.String("auth_code_id", record.ID),
			slog.Any("error", err),
		)
		return AuthorizeResult{}, err
	}

	s.Hooks.authorizationCodeIssued(ctx, record)

	l.Info("authorization code issued",
		slog.String("auth_code_id", record.ID),
		slog.String("client_id", ar.Client.ID),
		slog.String("user_id", ar.UserID),
	)

	return AuthorizeResult{
		Code:        code,
		RedirectURI: ar.RedirectURI,
		State:       ar.State,
	}, nil
}

// resolveRedirectURI applies the registration rules: a supplied URI must
// exactly match a registered one; an omitted URI is only acceptable when
// the client registered exactly one.
func resolveRedirectURI(client *domain.Client, requested string) (string, error) {
	if requested == "" {
		if len(client.RedirectURIs) != 1 {
			return "", fmt.Errorf("%w: redirect_uri is required", ErrInvalidClient)
		}
		return client.RedirectURIs[0], nil
	}
	if !client.HasRedirectURI(requested) {
		return "", fmt.Errorf("%w: redirect_uri is not registered", ErrInvalidClient)
	}
	return requested, nil
}
