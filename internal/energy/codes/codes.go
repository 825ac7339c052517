package codes

const (
	// Input validation.
	ErrBadAmount = "E_BAD_AMOUNT"

	// Consumption gating.
	ErrNoEnergy            = "E_NO_ENERGY"
	ErrActionCap           = "E_ACTION_CAP"
	ErrMinReserve          = "E_MIN_RESERVE"
	ErrDailyLimit          = "E_DAILY_LIMIT"
	ErrValidationException = "E_VALIDATION_EXCEPTION"

	// Purchase layer.
	ErrPurchaseDisabled = "E_PURCHASE_DISABLED"
	ErrPurchaseCap      = "E_PURCHASE_CAP"
	ErrPoolFull         = "E_POOL_FULL"
	ErrNoFunds          = "E_NO_FUNDS"
	ErrChargeFailed     = "E_CHARGE_FAILED"
)

var knownCodes = map[string]struct{}{
	ErrBadAmount:           {},
	ErrNoEnergy:            {},
	ErrActionCap:           {},
	ErrMinReserve:          {},
	ErrDailyLimit:          {},
	ErrValidationException: {},
	ErrPurchaseDisabled:    {},
	ErrPurchaseCap:         {},
	ErrPoolFull:            {},
	ErrNoFunds:             {},
	ErrChargeFailed:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
