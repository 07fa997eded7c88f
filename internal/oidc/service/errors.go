package service

import "errors"

// Sentinel errors returned by the services. The HTTP layer maps these onto
// the wire-level OAuth2 error responses.
var (
	ErrInvalidRequest          = errors.New("invalid authorization request")
	ErrInvalidClient           = errors.New("invalid client")
	ErrInvalidGrant            = errors.New("invalid grant")
	ErrExpiredCode             = errors.New("authorization code has expired")
	ErrInvalidScope            = errors.New("invalid scope")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrLoginRequired           = errors.New("login required")
	ErrAccessDenied            = errors.New("access denied")
	ErrMFARequired             = errors.New("mfa required")
	ErrUnsupportedGrantType    = errors.New("unsupported grant type")
	ErrUnsupportedResponseType = errors.New("unsupported response type")
	ErrMissingSubjectClaim     = errors.New("identity token requires a subject claim")
	ErrBootstrapAlready        = errors.New("system already bootstrapped")
	ErrMFAAlreadyEnabled       = errors.New("totp already enabled")
	ErrMFANotEnrolled          = errors.New("totp enrollment not started")
)
