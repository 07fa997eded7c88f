// Package claims maps OAuth2 scopes to OpenID Connect claims and extracts
// the claims a grant is entitled to from a user's claim document.
package claims

import (
	"errors"
	"fmt"
	"sync"
)

// ErrProtectedScope is returned when registering a claim set under one of
// the standard OIDC scope names.
var ErrProtectedScope = errors.New("claims: scope name is protected")

// ClaimSet binds a scope name to the claims it unlocks.
type ClaimSet struct {
	Scope  string
	Claims []string
}

// Standard scope names from OpenID Connect Core 5.4. These are registered
// in every Registry and cannot be replaced.
const (
	ScopeOpenID  = "openid"
	ScopeProfile = "profile"
	ScopeEmail   = "email"
	ScopeAddress = "address"
	ScopePhone   = "phone"
)

var standardSets = []ClaimSet{
	{Scope: ScopeOpenID, Claims: []string{"sub"}},
	{Scope: ScopeProfile, Claims: []string{
		"name", "family_name", "given_name", "middle_name", "nickname",
		"preferred_username", "profile", "picture", "website", "gender",
		"birthdate", "zoneinfo", "locale", "updated_at",
	}},
	{Scope: ScopeEmail, Claims: []string{"email", "email_verified"}},
	{Scope: ScopeAddress, Claims: []string{"address"}},
	{Scope: ScopePhone, Claims: []string{"phone_number", "phone_number_verified"}},
}

// StandardSets returns a copy of the standard OIDC claim sets.
func StandardSets() []ClaimSet {
	out := make([]ClaimSet, len(standardSets))
	copy(out, standardSets)
	return out
}

// Registry holds the scope-to-claims mapping. It is safe for concurrent
// use; custom scopes can be registered at runtime.
type Registry struct {
	mu   sync.RWMutex
	sets map[string]ClaimSet
}

// NewRegistry returns a Registry pre-populated with the standard OIDC
// scopes.
func NewRegistry() *Registry {
	r := &Registry{sets: make(map[string]ClaimSet, len(standardSets))}
	for _, set := range standardSets {
		r.sets[set.Scope] = set
	}
	return r
}

// Register adds a claim set for a custom scope. Registering over one of
// the standard scope names fails with ErrProtectedScope; registering over
// an existing custom scope replaces it.
func (r *Registry) Register(set ClaimSet) error {
	if set.Scope == "" {
		return errors.New("claims: scope name is required")
	}
	for _, std := range standardSets {
		if set.Scope == std.Scope {
			return fmt.Errorf("%w: %q", ErrProtectedScope, set.Scope)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets[set.Scope] = set
	return nil
}

// Lookup returns the claim set registered for a scope.
func (r *Registry) Lookup(scope string) (ClaimSet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.sets[scope]
	return set, ok
}

// Scopes returns the names of all registered scopes.
func (r *Registry) Scopes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sets))
	for name := range r.sets {
		names = append(names, name)
	}
	return names
}

// ClaimNames returns the union of claim names across all registered
// scopes. Used for the claims_supported discovery field.
func (r *Registry) ClaimNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var names []string
	for _, set := range r.sets {
		for _, c := range set.Claims {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			names = append(names, c)
		}
	}
	return names
}
