// Package service provides domain services for usagemesh.
//
// Domain services contain pure business logic and orchestrate operations
// on domain models. They define interfaces for their collaborators,
// allowing for dependency injection and testability.
//
// This package contains:
//
//   - EvaluateAvailability: the license/enablement gate
//   - UsageService: gated fetch, merge and packaging of per-node stats
//
// Node discovery, request routing and counter collection live behind the
// NodeStatsFetcher and LicenseState interfaces.
package service
