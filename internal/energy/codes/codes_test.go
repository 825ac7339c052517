package codes

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrBadAmount,
		ErrNoEnergy,
		ErrActionCap,
		ErrMinReserve,
		ErrDailyLimit,
		ErrValidationException,
		ErrPurchaseDisabled,
		ErrPurchaseCap,
		ErrPoolFull,
		ErrNoFunds,
		ErrChargeFailed,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}
