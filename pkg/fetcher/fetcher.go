// Package fetcher defines the public-IP fetcher interface and the
// caching resolver that fills dynamic A/AAAA record content.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Family selects which address family a lookup asks for.
type Family string

const (
	IPv4 Family = "ipv4"
	IPv6 Family = "ipv6"
)

// ErrResolution indicates a public-IP lookup failed and no cached
// address was available to fall back on. Targets depending on the
// lookup fail for the cycle and retry on the next one.
var ErrResolution = errors.New("public IP resolution failed")

// Fetcher discovers the host's current public IP address.
type Fetcher interface {
	// Name returns the fetcher instance name from the configuration.
	Name() string

	// Type returns the fetcher type (e.g. "http_fetcher").
	Type() string

	// Alive returns how long a fetched address stays fresh before the
	// resolver asks again.
	Alive() time.Duration

	// FetchIP performs one live lookup for the given address family.
	FetchIP(ctx context.Context, family Family) (string, error)
}

// ResolutionError wraps a lookup failure with fetcher context.
type ResolutionError struct {
	Fetcher string
	Family  Family
	Err     error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("fetcher %s (%s): %v", e.Fetcher, e.Family, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}
