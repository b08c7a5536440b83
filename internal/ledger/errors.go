package ledger

import "errors"

// Command error taxonomy. Every gateway operation fails with exactly one of
// these (possibly wrapped with detail); callers branch with errors.Is.
var (
	// ErrInvalidAmount is returned when a command carries a zero or negative
	// amount, or is otherwise malformed.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidAddress is returned when a chain address fails validation.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInsufficientBalance is returned when the liquid balance does not
	// cover a transfer or stake.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientStaked is returned when the staked balance does not
	// cover an unstake.
	ErrInsufficientStaked = errors.New("insufficient staked balance")

	// ErrAccountNotFound is returned when the referenced account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrTransactionNotFound is returned when the referenced transaction does
	// not exist.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrUnauthorized is returned when a caller lacks the capability for a
	// privileged command.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrContention is returned when a command aborts on lock contention.
	// The command had no effect and is safe to retry.
	ErrContention = errors.New("contention, retry the command")
)

// ErrorCode maps a gateway error to its stable taxonomy code, used by the
// HTTP layer and metrics labels.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return "InvalidAmount"
	case errors.Is(err, ErrInvalidAddress):
		return "InvalidAddress"
	case errors.Is(err, ErrInsufficientBalance):
		return "InsufficientBalance"
	case errors.Is(err, ErrInsufficientStaked):
		return "InsufficientStaked"
	case errors.Is(err, ErrAccountNotFound):
		return "AccountNotFound"
	case errors.Is(err, ErrTransactionNotFound):
		return "TransactionNotFound"
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, ErrNotPending):
		return "NotPending"
	case errors.Is(err, ErrContention):
		return "Contention"
	default:
		return "Internal"
	}
}
