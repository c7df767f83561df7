package sync

import (
	"errors"
	"fmt"
)

// ErrorClass partitions remote failures by the recovery they demand.
type ErrorClass string

const (
	// ClassAuth means the session is no longer valid. The only recovery
	// is a full forced logout; no partial-auth state is representable.
	ClassAuth ErrorClass = "auth"

	// ClassConnectivity means the remote was unreachable or timed out.
	// Cached data stays live and queued writes stay queued.
	ClassConnectivity ErrorClass = "connectivity"

	// ClassValidation means the remote rejected the payload itself.
	// Retrying the identical payload cannot succeed.
	ClassValidation ErrorClass = "validation"

	// ClassOther covers everything else (server faults, decode errors).
	ClassOther ErrorClass = "other"
)

// RemoteError is a classified failure from a Remote call.
type RemoteError struct {
	Class ErrorClass
	Op    string // remote operation, e.g. "login", "update order status"
	Err   error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %s: %v", e.Op, e.Class, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// classOf extracts the error class, defaulting to ClassOther for
// unclassified errors.
func classOf(err error) ErrorClass {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Class
	}
	return ClassOther
}

// IsAuthExpired reports whether err means the session is invalid.
func IsAuthExpired(err error) bool { return classOf(err) == ClassAuth }

// IsConnectivity reports whether err is a transient reachability failure.
func IsConnectivity(err error) bool { return classOf(err) == ClassConnectivity }

// IsRemoteValidation reports whether the remote rejected the payload.
func IsRemoteValidation(err error) bool { return classOf(err) == ClassValidation }

// ErrNotAuthenticated is returned by controller operations that require a
// live session.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrOrderNotCached is returned when a status update names an order that
// is not in the cached page.
var ErrOrderNotCached = errors.New("order not in local cache")

// ErrRulesNotLoaded is returned by form resolution before LoadRules has
// populated the rule snapshot.
var ErrRulesNotLoaded = errors.New("resolution rules not loaded")
