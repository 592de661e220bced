package sim

import "errors"

var (
	// ErrValidation means a required identifying field was missing; no
	// mutation was attempted.
	ErrValidation = errors.New("missing required field")

	// ErrUserNotFound means the email did not resolve to a known user.
	ErrUserNotFound = errors.New("user not found")

	// ErrOrderNotFound means the order id was absent from the container(s)
	// the operation searched. Callers retrying after a confirmed success
	// will see this - the order already moved - so on retry it can signal
	// "already done" rather than a hard failure.
	ErrOrderNotFound = errors.New("order not found")

	// ErrDuplicateID means an order id already exists somewhere in the
	// user's document. Ids must be unique across buy, sell and trash.
	ErrDuplicateID = errors.New("duplicate order id")
)
