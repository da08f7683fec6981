package handler

import "fmt"

// Rejection is the distinguished result a handle routine returns when
// business policy stops a call from being routed. The dispatcher branches on
// it with errors.As: the caller gets a diagnostic and the fail sequence, and
// nothing is logged as an unexpected failure.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string {
	return r.Reason
}

// Reject builds a policy rejection.
func Reject(format string, args ...any) error {
	return &Rejection{Reason: fmt.Sprintf(format, args...)}
}
