package oidc_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func TestTOTPStepUp(t *testing.T) {
	baseURL, cleanup := setupContainer(t)
	defer cleanup()

	boot := bootstrapProvider(t, baseURL)

	// Establish a session for the enrollment endpoints.
	code := authorizeForCode(t, baseURL, authorizeParams{
		ClientID: boot.ClientID,
		Scopes:   []string{"openid", "profile"},
		Username: adminUsername,
		Password: adminPassword,
	})
	status, token, _ := exchangeToken(t, baseURL, url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"client_id":     {boot.ClientID},
		"client_secret": {boot.ClientSecret},
	})
	require.Equal(t, http.StatusOK, status)

	// Enroll: the secret comes back once, activation requires a valid code.
	var enrollment struct {
		Secret string `json:"secret"`
		URL    string `json:"url"`
	}

	req, err := http.NewRequest(http.MethodPost, baseURL+"/v1/mfa/totp/enroll", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&enrollment))
	resp.Body.Close()
	require.NotEmpty(t, enrollment.Secret)
	require.Contains(t, enrollment.URL, "otpauth://")

	activateCode, err := totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)

	payload, err := json.Marshal(map[string]string{"code": activateCode})
	require.NoError(t, err)

	req, err = http.NewRequest(http.MethodPost, baseURL+"/v1/mfa/totp/activate", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	t.Run("login without code is challenged", func(t *testing.T) {
		resp := authorize(t, baseURL, authorizeParams{
			ClientID: boot.ClientID,
			Scopes:   []string{"openid"},
			Username: adminUsername,
			Password: adminPassword,
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Equal(t, "mfa_required", body["error"])
	})

	t.Run("login with code succeeds", func(t *testing.T) {
		otpCode, err := totp.GenerateCode(enrollment.Secret, time.Now())
		require.NoError(t, err)

		code := authorizeForCode(t, baseURL, authorizeParams{
			ClientID: boot.ClientID,
			Scopes:   []string{"openid"},
			Username: adminUsername,
			Password: adminPassword,
			OTPCode:  otpCode,
		})
		require.NotEmpty(t, code)
	})

	t.Run("disable restores password-only login", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodDelete, baseURL+"/v1/mfa/totp", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token.AccessToken)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		code := authorizeForCode(t, baseURL, authorizeParams{
			ClientID: boot.ClientID,
			Scopes:   []string{"openid"},
			Username: adminUsername,
			Password: adminPassword,
		})
		require.NotEmpty(t, code)
	})
}
