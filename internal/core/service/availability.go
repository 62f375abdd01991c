// Package service provides domain services for usagemesh.
package service

// LicenseState answers whether the installed license grants a feature.
type LicenseState interface {
	IsFeatureAllowed(feature string) bool
}

// LicenseSource returns the license state current at call time.
// It may return nil when no license is installed.
type LicenseSource func() LicenseState

// StaticLicense returns a LicenseSource that always yields state.
func StaticLicense(state LicenseState) LicenseSource {
	return func() LicenseState { return state }
}

// Availability is the outcome of the availability gate.
type Availability struct {
	Available bool
	Enabled   bool
}

// EvaluateAvailability decides whether feature is available and enabled.
//
// Available derives purely from the license state and is false when no
// license is present. Enabled is passed through unchanged.
func EvaluateAvailability(state LicenseState, feature string, enabled bool) Availability {
	return Availability{
		Available: licenseAllows(state, feature),
		Enabled:   enabled,
	}
}

// licenseAllows treats a missing license as no grant. Implementations of
// LicenseState must accept a nil receiver.
func licenseAllows(state LicenseState, feature string) bool {
	if state == nil {
		return false
	}
	return state.IsFeatureAllowed(feature)
}
