package inventory

import (
	"tix/src/models"
	"tix/src/types"
)

// Pure validation over a freshly computed stats snapshot and a live
// per-customer count. No side effects; callable standalone as pre-checks.

func ValidateAvailability(stats *models.TicketTypeStats, requested uint) error {
	if requested == 0 {
		return types.NewError(types.CodeInvalidStatus, "requested quantity must be positive")
	}
	if stats.Available < requested {
		return types.NewError(types.CodeSoldOut, "ticket type %d has %d of %d units left", stats.TicketTypeID, stats.Available, stats.Total)
	}
	return nil
}

func ValidateCustomerLimit(maxPerCustomer uint, existing int64, requested uint) error {
	if existing+int64(requested) > int64(maxPerCustomer) {
		return types.NewError(types.CodeMaxPerCustomerExceeded, "customer would hold %d of max %d tickets", existing+int64(requested), maxPerCustomer)
	}
	return nil
}
