package swap

import "errors"

var (
	// ErrNotFound is returned when the requested order does not exist.
	ErrNotFound = errors.New("swap: order not found")
	// ErrDuplicateID is returned when inserting an order whose identifier is
	// already registered.
	ErrDuplicateID = errors.New("swap: order id already exists")
	// ErrFillNotFound is returned when the requested fill sequence does not
	// exist on the order.
	ErrFillNotFound = errors.New("swap: fill not found")

	// ErrInvalidOrder flags an order that failed sanitisation.
	ErrInvalidOrder = errors.New("swap: invalid order")
	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("swap: amount must be positive")
	// ErrAmountOutOfBounds is returned when an amount falls outside the
	// configured [min, max] swap window.
	ErrAmountOutOfBounds = errors.New("swap: amount outside configured bounds")
	// ErrInvalidDirection is returned for unrecognised swap directions.
	ErrInvalidDirection = errors.New("swap: invalid direction")
	// ErrInvalidTimelock is returned for non-positive timelock durations.
	ErrInvalidTimelock = errors.New("swap: timelock duration must be positive")

	// ErrInvalidStatus is returned when an operation is not permitted in the
	// order's current status.
	ErrInvalidStatus = errors.New("swap: status transition not allowed")
	// ErrPartialFillsDisabled is returned when a partial fill is attempted on
	// an order that only accepts a single full-amount fill.
	ErrPartialFillsDisabled = errors.New("swap: partial fills disabled")
	// ErrInsufficientRemaining is returned when a fill would over-subscribe
	// the order's remaining capacity.
	ErrInsufficientRemaining = errors.New("swap: insufficient remaining capacity")
	// ErrReservationNotFound is returned when committing or releasing an
	// unknown reservation.
	ErrReservationNotFound = errors.New("swap: reservation not found")

	// ErrHashlockMismatch is returned when a revealed secret does not hash to
	// the stored commitment.
	ErrHashlockMismatch = errors.New("swap: hashlock mismatch")
	// ErrTimelockExpired is returned for claims past expiry and grace.
	ErrTimelockExpired = errors.New("swap: timelock expired")
	// ErrTimelockNotExpired is returned for refunds before expiry.
	ErrTimelockNotExpired = errors.New("swap: timelock not expired")
	// ErrAlreadyClaimed is returned when the order or fill was already
	// settled by a prior claim.
	ErrAlreadyClaimed = errors.New("swap: already claimed")
	// ErrOperationPending is returned when a concurrent claim or refund holds
	// the tentative slot for the same order.
	ErrOperationPending = errors.New("swap: conflicting operation in flight")

	// ErrFundingMismatch is returned when the on-chain deposit disagrees with
	// the stored commitment, expiry or amount.
	ErrFundingMismatch = errors.New("swap: on-chain deposit does not match order")
	// ErrAdapterTimeout is returned when a chain adapter call exceeded its
	// deadline; any tentative reservation has been rolled back.
	ErrAdapterTimeout = errors.New("swap: chain adapter timed out")
	// ErrAdapterUnavailable is returned when no adapter is registered for the
	// chain the operation targets.
	ErrAdapterUnavailable = errors.New("swap: no adapter for chain")

	// ErrInvariant flags an internal consistency failure. The affected order
	// is halted and requires manual inspection; the error is never silently
	// recovered.
	ErrInvariant = errors.New("swap: invariant violation")
	// ErrHalted is returned for operations against a halted order.
	ErrHalted = errors.New("swap: order halted pending inspection")
)
