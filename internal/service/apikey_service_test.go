package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/referral-next/internal/constants"
	"github.com/referral-next/internal/repository"
)

func newAPIKeyTest(t *testing.T, name string) (*APIKeyService, *serviceTestEnv) {
	t.Helper()

	env := newServiceTestEnv(t, name)
	return NewAPIKeyService(repository.NewAPIKeyRepository(env.db)), env
}

func TestAPIKeyCreateAndVerify(t *testing.T) {
	svc, _ := newAPIKeyTest(t, "apikey_create")

	key, plaintext, err := svc.Create("partner-agency", nil, []string{constants.ScopeReferralsRead, constants.ScopeReferralsWrite})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !strings.HasPrefix(plaintext, "rk_"+key.Prefix+"_") {
		t.Fatalf("unexpected plaintext format %q", plaintext)
	}
	if key.SecretHash == "" || strings.Contains(plaintext, key.SecretHash) {
		t.Fatal("expected secret stored only as hash")
	}

	verified, err := svc.Verify(plaintext)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if verified.ID != key.ID {
		t.Fatalf("expected key %d, got %d", key.ID, verified.ID)
	}
	if verified.LastUsedAt == nil {
		t.Fatal("expected last used timestamp refreshed")
	}
}

func TestAPIKeyVerifyRejectsBadSecretAndFormat(t *testing.T) {
	svc, _ := newAPIKeyTest(t, "apikey_reject")

	key, plaintext, err := svc.Create("partner-bad", nil, []string{constants.ScopeReferralsRead})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := svc.Verify("rk_" + key.Prefix + "_wrong-secret"); !errors.Is(err, ErrAPIKeyInvalid) {
		t.Fatalf("expected invalid key for wrong secret, got %v", err)
	}
	for _, presented := range []string{"", "rk_onlyprefix", "xx_a_b", plaintext + "_extra"} {
		if _, err := svc.Verify(presented); !errors.Is(err, ErrAPIKeyInvalid) {
			t.Fatalf("expected invalid key for %q, got %v", presented, err)
		}
	}
}

func TestAPIKeyScopesEnforced(t *testing.T) {
	svc, _ := newAPIKeyTest(t, "apikey_scopes")

	key, _, err := svc.Create("partner-readonly", nil, []string{constants.ScopeReferralsRead})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := svc.RequireScope(key, constants.ScopeReferralsRead); err != nil {
		t.Fatalf("expected read scope granted, got %v", err)
	}
	if err := svc.RequireScope(key, constants.ScopeReferralsWrite); !errors.Is(err, ErrScopeMissing) {
		t.Fatalf("expected write scope missing, got %v", err)
	}

	if _, _, err := svc.Create("partner-unknown-scope", nil, []string{"referrals:admin"}); !errors.Is(err, ErrScopeMissing) {
		t.Fatalf("expected unknown scope rejected, got %v", err)
	}
}

func TestAPIKeyDisabledRejected(t *testing.T) {
	svc, _ := newAPIKeyTest(t, "apikey_disabled")

	key, plaintext, err := svc.Create("partner-disabled", nil, []string{constants.ScopeReferralsRead})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := svc.Disable(key.ID); err != nil {
		t.Fatalf("disable failed: %v", err)
	}
	if _, err := svc.Verify(plaintext); !errors.Is(err, ErrAPIKeyInvalid) {
		t.Fatalf("expected disabled key rejected, got %v", err)
	}
}
