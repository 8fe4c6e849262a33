package api

import (
	"net/http"
	"strings"

	"routeopt/internal/auth"
)

// getPrincipal extracts tenant and role.
//   - If Authorization: Bearer is present, uses the configured verifier.
//   - Else falls back to headers for dev.
func (s *Server) getPrincipal(r *http.Request) auth.Principal {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
		tok := strings.TrimSpace(authz[len("Bearer "):])
		if pr, err := s.Auth.Verify(tok); err == nil {
			return pr
		}
		// A bad token never falls through to the header identity.
		return auth.Principal{Tenant: "anonymous", Role: "none"}
	}
	tenant := r.Header.Get("X-Tenant-Id")
	role := r.Header.Get("X-Role")
	if tenant == "" {
		tenant = "t_demo"
	}
	if role == "" {
		role = "user"
		if s.Auth == nil || s.Auth.Mode == "dev" {
			role = "admin"
		}
	}
	return auth.Principal{Tenant: tenant, Role: strings.ToLower(role)}
}
