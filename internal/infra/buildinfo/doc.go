// Package buildinfo exposes build-time information injected via ldflags.
//
//	go build -ldflags "-X github.com/yndnr/usagemesh-go/internal/infra/buildinfo.Version=v1.0.0"
//
// Both binaries report it with --version, the server returns it from
// /admin/v1/status/summary and HTTP clients send it in their User-Agent.
package buildinfo
