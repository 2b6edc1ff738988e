package client

import (
	"encoding/json"
	"errors"
)

// Messages carried by envelopes the client produces itself.
const (
	MsgConnect       = "Could not connect to server, please try again later.\n"
	MsgCouldNotLogin = "could not login"
	MsgInvalidToken  = "invalid token"
	MsgNotSupported  = "operation not supported yet"
)

// ErrNotSupported marks contracts that are declared but not implemented.
var ErrNotSupported = errors.New("client: not supported")

// ErrorKind classifies an envelope.
type ErrorKind int

const (
	// KindTransport covers connection, encoding and decoding failures.
	KindTransport ErrorKind = iota
	// KindRejected means the server answered but refused the request.
	KindRejected
	// KindNotSupported is returned by pending operations.
	KindNotSupported
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRejected:
		return "rejected"
	case KindNotSupported:
		return "not_supported"
	default:
		return "unknown"
	}
}

// ErrorEnvelope is the uniform failure shape of every client operation.
// It encodes to {"error": Message}.
type ErrorEnvelope struct {
	Kind    ErrorKind `json:"-"`
	Message string    `json:"error"`
	cause   error
}

func (e *ErrorEnvelope) Error() string {
	return e.Message
}

// Unwrap exposes the underlying cause, if any.
func (e *ErrorEnvelope) Unwrap() error {
	return e.cause
}

// Is lets errors.Is(err, ErrNotSupported) match pending-operation envelopes.
func (e *ErrorEnvelope) Is(target error) bool {
	return target == ErrNotSupported && e.Kind == KindNotSupported
}

// MarshalJSON emits the {"error": "..."} shape.
func (e *ErrorEnvelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"error": e.Message})
}

func transportFailure(cause error) *ErrorEnvelope {
	return &ErrorEnvelope{Kind: KindTransport, Message: MsgConnect, cause: cause}
}

func rejected(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Kind: KindRejected, Message: msg}
}

func notSupported(op string) *ErrorEnvelope {
	return &ErrorEnvelope{Kind: KindNotSupported, Message: op + ": " + MsgNotSupported}
}

// AsEnvelope extracts an *ErrorEnvelope from err. Errors that did not
// originate in this package are reported as transport failures.
func AsEnvelope(err error) *ErrorEnvelope {
	if err == nil {
		return nil
	}
	var env *ErrorEnvelope
	if errors.As(err, &env) {
		return env
	}
	return transportFailure(err)
}

// envelopeFromBody returns a rejection when body is a JSON object carrying a
// non-empty "error" string.
func envelopeFromBody(body []byte) *ErrorEnvelope {
	var probe struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil
	}
	if probe.Error == nil || *probe.Error == "" {
		return nil
	}
	return rejected(*probe.Error)
}
