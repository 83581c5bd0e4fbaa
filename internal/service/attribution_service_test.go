package service

import (
	"testing"
	"time"

	"github.com/referral-next/internal/constants"
)

func TestAttributionURLCodeDominatesCookie(t *testing.T) {
	env := newServiceTestEnv(t, "attribution_priority")

	urlReferrer := createTestIdentity(t, env.db, "url-referrer@example.com", "URLCODE")
	cookieReferrer := createTestIdentity(t, env.db, "cookie-referrer@example.com", "CKCODE1")
	record := createTestRecord(t, env.db, cookieReferrer.ID, nil, "", constants.ReferralStateReferred, time.Now().AddDate(0, 0, 30))

	attr, err := env.attribution.Resolve(AttributionInput{
		URLCode:     "URLCODE",
		CookieValue: env.signature.EncodeCookie(record.Ref),
	}, 0, "newcomer@example.com")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if attr == nil || attr.Referrer.ID != urlReferrer.ID {
		t.Fatalf("expected url referrer %d to win, got %+v", urlReferrer.ID, attr)
	}
	if attr.Method != constants.AttributionMethodURL {
		t.Fatalf("expected url method, got %s", attr.Method)
	}
}

func TestAttributionInvalidCookieTreatedAsAbsent(t *testing.T) {
	env := newServiceTestEnv(t, "attribution_bad_cookie")

	manualReferrer := createTestIdentity(t, env.db, "manual-referrer@example.com", "MANCODE")

	attr, err := env.attribution.Resolve(AttributionInput{
		CookieValue: "forged-payload.forged-signature",
		ManualCode:  "MANCODE",
	}, 0, "newcomer@example.com")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if attr == nil || attr.Referrer.ID != manualReferrer.ID {
		t.Fatalf("expected fallback to manual code, got %+v", attr)
	}
	if attr.Method != constants.AttributionMethodManual {
		t.Fatalf("expected manual method, got %s", attr.Method)
	}
}

func TestAttributionSelfReferralIsOrganic(t *testing.T) {
	env := newServiceTestEnv(t, "attribution_self")

	identity := createTestIdentity(t, env.db, "self@example.com", "SELFCOD")

	attr, err := env.attribution.Resolve(AttributionInput{
		URLCode: "SELFCOD",
	}, identity.ID, identity.Email)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if attr != nil {
		t.Fatalf("expected self referral to resolve organic, got %+v", attr)
	}
}

func TestAttributionCodeLookupIsCaseSensitive(t *testing.T) {
	env := newServiceTestEnv(t, "attribution_case")

	createTestIdentity(t, env.db, "cased@example.com", "AbCdEf1")

	attr, err := env.attribution.Resolve(AttributionInput{
		URLCode: "ABCDEF1",
	}, 0, "newcomer@example.com")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if attr != nil {
		t.Fatalf("expected wrong-case code to miss, got %+v", attr)
	}

	attr, err = env.attribution.Resolve(AttributionInput{
		URLCode: "AbCdEf1",
	}, 0, "newcomer@example.com")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if attr == nil {
		t.Fatal("expected exact-case code to resolve")
	}
}

func TestAttributionUnknownURLCodeFallsThrough(t *testing.T) {
	env := newServiceTestEnv(t, "attribution_fallthrough")

	cookieReferrer := createTestIdentity(t, env.db, "fallthrough@example.com", "FTCODE1")
	record := createTestRecord(t, env.db, cookieReferrer.ID, nil, "", constants.ReferralStateReferred, time.Now().AddDate(0, 0, 30))

	attr, err := env.attribution.Resolve(AttributionInput{
		URLCode:     "NOSUCH1",
		CookieValue: env.signature.EncodeCookie(record.Ref),
	}, 0, "newcomer@example.com")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if attr == nil || attr.Method != constants.AttributionMethodCookie {
		t.Fatalf("expected cookie attribution after unknown url code, got %+v", attr)
	}
	if attr.Record == nil || attr.Record.ID != record.ID {
		t.Fatalf("expected click record %d to be carried, got %+v", record.ID, attr.Record)
	}
}
