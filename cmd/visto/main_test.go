package main

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/visto-dev/visto/pkg/auth"
	"github.com/visto-dev/visto/pkg/config"
)

func TestBuildAuthNone(t *testing.T) {
	cfg := config.Defaults()

	chain, limiter, err := buildAuth(&cfg)
	if err != nil {
		t.Fatalf("buildAuth failed: %v", err)
	}
	if limiter != nil {
		t.Error("limiter configured without rate_limit_rpm")
	}
	if len(chain.Authenticators) != 1 {
		t.Fatalf("chain has %d authenticators, want 1", len(chain.Authenticators))
	}

	// The accept-all authenticator votes Grant itself; requests never
	// reach the chain default.
	result := chain.Authenticators[0].Authenticate(context.Background(),
		httptest.NewRequest("GET", "/v1/search", nil))
	if result.Decision != auth.Grant {
		t.Errorf("decision = %v, want Grant", result.Decision)
	}
	if result.Identity == nil || result.Identity.Subject != "anonymous" {
		t.Errorf("identity = %+v, want anonymous subject", result.Identity)
	}
}

func TestBuildAuthAPIKey(t *testing.T) {
	cfg := config.Defaults()
	cfg.Auth.Type = "apikey"
	cfg.Auth.APIKeys = []config.APIKeyConfig{{Key: "sk-test", Subject: "alice"}}

	chain, _, err := buildAuth(&cfg)
	if err != nil {
		t.Fatalf("buildAuth failed: %v", err)
	}
	if chain.DefaultDecision != auth.Deny {
		t.Error("apikey chain should deny by default")
	}

	req := httptest.NewRequest("GET", "/v1/search", nil)
	req.Header.Set("Authorization", "Bearer sk-test")
	result := chain.Authenticate(context.Background(), req)
	if result.Decision != auth.Grant || result.Identity.Subject != "alice" {
		t.Errorf("valid key: decision = %v identity = %+v", result.Decision, result.Identity)
	}

	// Missing credentials fall through to the deny default.
	result = chain.Authenticate(context.Background(),
		httptest.NewRequest("GET", "/v1/search", nil))
	if result.Decision != auth.Deny {
		t.Errorf("no credentials: decision = %v, want Deny", result.Decision)
	}
}

func TestBuildAuthJWT(t *testing.T) {
	cfg := config.Defaults()
	cfg.Auth.Type = "jwt"
	cfg.Auth.JWT.JWKSURL = "http://localhost:9/jwks"

	chain, _, err := buildAuth(&cfg)
	if err != nil {
		t.Fatalf("buildAuth failed: %v", err)
	}
	if chain.DefaultDecision != auth.Deny {
		t.Error("jwt chain should deny by default")
	}
	if len(chain.Authenticators) != 1 {
		t.Errorf("chain has %d authenticators, want 1", len(chain.Authenticators))
	}
}

func TestBuildAuthUnknownType(t *testing.T) {
	cfg := config.Defaults()
	cfg.Auth.Type = "basic"

	if _, _, err := buildAuth(&cfg); err == nil {
		t.Error("expected error for unknown auth type")
	}
}

func TestBuildAuthRateLimiter(t *testing.T) {
	cfg := config.Defaults()
	cfg.Auth.RateLimitRPM = 60

	_, limiter, err := buildAuth(&cfg)
	if err != nil {
		t.Fatalf("buildAuth failed: %v", err)
	}
	if limiter == nil {
		t.Error("rate_limit_rpm set but no limiter configured")
	}
}
