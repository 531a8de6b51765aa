package collect

import (
	"context"
	"errors"
	"fmt"

	"github.com/streamlens/streamlens/internal/domain/record"
)

// FailKind classifies a failed collector invocation. The scheduler's
// failure policy branches on the kind, never on platform specifics.
type FailKind string

const (
	KindTransient      FailKind = "transient"
	KindRateLimited    FailKind = "rate_limited"
	KindAuthInvalid    FailKind = "auth_invalid"
	KindEntityNotFound FailKind = "entity_not_found"
	KindCredential     FailKind = "credential"
)

// Failure is the only error type a collector may return. Platform error
// shapes are mapped into it before reaching the scheduler.
type Failure struct {
	Kind   FailKind
	Reason string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Reason, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Reason)
}

func (f *Failure) Unwrap() error { return f.Err }

func Fail(kind FailKind, reason string, err error) *Failure {
	return &Failure{Kind: kind, Reason: reason, Err: err}
}

// KindOf extracts the failure kind from an error, defaulting to
// transient so unknown faults retry on the normal schedule.
func KindOf(err error) FailKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindTransient
}

// Credential is the read surface a collector gets for the duration of
// one cycle. Field values never outlive the call that produced them.
type Credential interface {
	Get(key string) string
	Fingerprint() string
}

// Collector performs one polling cycle for one platform. It must be
// side-effect free on failure with respect to scheduler state: it only
// talks to the external API and returns normalized records or a
// *Failure.
type Collector interface {
	Collect(ctx context.Context, cred Credential, entity string) ([]record.Record, error)
}
