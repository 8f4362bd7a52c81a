// Package pkguri parses and formats package URIs of the form
// <scheme>://<name>, where scheme distinguishes system-managed
// (garbage-collectable) packages from user-pinned ones.
package pkguri

import (
	"strings"

	"github.com/ray-project/runtimeenv-go/internal/rterrors"
)

// Scheme identifies who owns the lifecycle of a package.
type Scheme int

const (
	// System marks a package created and managed by the cluster itself.
	// Wire form: "gcs".
	System Scheme = iota
	// Pinned marks a package created and retained by a user. Wire form:
	// "pingcs".
	Pinned
)

const (
	systemWire = "gcs"
	pinnedWire = "pingcs"
)

// String returns the wire-form scheme token.
func (s Scheme) String() string {
	switch s {
	case System:
		return systemWire
	case Pinned:
		return pinnedWire
	default:
		return "unknown"
	}
}

func parseScheme(s string) (Scheme, error) {
	switch s {
	case systemWire:
		return System, nil
	case pinnedWire:
		return Pinned, nil
	default:
		return 0, &rterrors.UnknownSchemeError{Scheme: s}
	}
}

// Parse splits a package URI into its scheme and name.
func Parse(uri string) (Scheme, string, error) {
	scheme, name, ok := strings.Cut(uri, "://")
	if !ok {
		return 0, "", &rterrors.UnknownSchemeError{Scheme: uri}
	}
	sc, err := parseScheme(scheme)
	if err != nil {
		return 0, "", err
	}
	return sc, name, nil
}

// Format builds the wire-form URI for a scheme and package name.
func Format(scheme Scheme, name string) string {
	return scheme.String() + "://" + name
}
