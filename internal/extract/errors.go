package extract

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackzampolin/kitab/internal/providers"
)

// Kind classifies an oracle failure.
type Kind string

const (
	KindTransport Kind = "transport"
	KindTimeout   Kind = "timeout"
	KindMalformed Kind = "malformed"
	KindSchema    Kind = "schema"
	KindEmpty     Kind = "empty"
)

// ErrNoCredentials is returned when the session has no oracle keys.
var ErrNoCredentials = errors.New("no oracle credentials configured")

// Error is a failed oracle call. Credential is the index of the key that
// was used, or -1 when no call was made.
type Error struct {
	Kind       Kind
	Credential int
	Err        error
}

func (e *Error) Error() string {
	if e.Credential < 0 {
		return fmt.Sprintf("oracle %s failure: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("oracle %s failure (credential %d): %v", e.Kind, e.Credential, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an oracle failure of kind k.
func IsKind(err error, k Kind) bool {
	var oe *Error
	return errors.As(err, &oe) && oe.Kind == k
}

func classify(err error) Kind {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return KindTimeout
	case errors.Is(err, providers.ErrEmptyOutput):
		return KindEmpty
	case errors.Is(err, providers.ErrNoJSONObject), errors.Is(err, providers.ErrMalformedJSON):
		return KindMalformed
	case errors.Is(err, providers.ErrSchemaMismatch):
		return KindSchema
	default:
		return KindTransport
	}
}
