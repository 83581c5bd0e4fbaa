package models

import (
	"testing"

	"github.com/referral-next/internal/constants"
)

func TestReferralRecordIsTerminal(t *testing.T) {
	cases := map[string]bool{
		constants.ReferralStateReferred:  false,
		constants.ReferralStateSignedUp:  false,
		constants.ReferralStateConverted: true,
		constants.ReferralStateExpired:   true,
	}
	for state, want := range cases {
		record := ReferralRecord{State: state}
		if record.IsTerminal() != want {
			t.Fatalf("IsTerminal(%s) = %v, want %v", state, record.IsTerminal(), want)
		}
	}
}
