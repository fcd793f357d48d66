package orders

import "github.com/juju/errors"

// TransitionPolicy decides whether an order may move from one status to another.
type TransitionPolicy func(from, to Status) error

// AnyTransition lets an admin set any valid status regardless of the current
// one. It is the policy in force today; a stricter graph only needs a new
// TransitionPolicy.
func AnyTransition(from, to Status) error {
	if !to.Valid() {
		return errors.NotValidf("status %q", to)
	}
	return nil
}
