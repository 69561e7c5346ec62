package entities

// Status is the binary outcome the host understands at every registration and
// lifecycle boundary.
type Status int32

const (
	// StatusOK reports success to the host.
	StatusOK Status = 0
	// StatusErr reports failure to the host.
	StatusErr Status = 1
)

// StatusFromBool maps a success flag to a Status.
func StatusFromBool(ok bool) Status {
	if ok {
		return StatusOK
	}
	return StatusErr
}

// StatusFromError returns StatusErr for a non-nil error.
func StatusFromError(err error) Status {
	return StatusFromBool(err == nil)
}

// OK reports whether s is StatusOK.
func (s Status) OK() bool {
	return s == StatusOK
}

// String returns "ok" or "err". Any non-zero code is an error.
func (s Status) String() string {
	if s == StatusOK {
		return "ok"
	}
	return "err"
}
