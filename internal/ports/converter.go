package ports

import "context"

// ConversionUnit is the externally supplied conversion code once loaded
// in-process. Lookup returns the value bound to an exported entry-point
// name; the caller probes its signature, since the unit's author does
// not follow a contract this system controls.
type ConversionUnit interface {
	Lookup(name string) (any, error)
}

// UnitLoader loads the conversion unit at most once per process. Both a
// successful load and a load failure are cached: a broken unit is not
// re-opened on every request, and a load failure is distinguishable
// from a conversion failure.
type UnitLoader interface {
	Load() (ConversionUnit, error)
}

// SubprocessRunner executes the conversion unit as a standalone program.
// It returns captured stdout and stderr; a non-zero exit or a deadline
// hit is reported through err.
type SubprocessRunner interface {
	Run(ctx context.Context, args ...string) (stdout, stderr string, err error)
}
