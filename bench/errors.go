package bench

import (
	"errors"
	"fmt"
)

// Kind classifies a fatal run error. Every I/O failure in the engines maps
// to exactly one kind; the kind is what the process boundary reports.
type Kind int

const (
	KindUnknown Kind = iota
	KindBind
	KindAccept
	KindConnect
	KindTimeout
	KindWrite
	KindRead
)

func (k Kind) String() string {
	switch k {
	case KindBind:
		return "BindError"
	case KindAccept:
		return "AcceptError"
	case KindConnect:
		return "ConnectError"
	case KindTimeout:
		return "TimeoutError"
	case KindWrite:
		return "WriteError"
	case KindRead:
		return "ReadError"
	}
	return "UnknownError"
}

// Error is a classified run error. Op names the operation that failed, e.g.
// "transport.connect".
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// WrapError classifies err. A nil err returns nil so call sites can wrap
// unconditionally.
func WrapError(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind carried by err, or KindUnknown for unclassified
// errors.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindUnknown
}
