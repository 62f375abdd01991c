// Package license provides the holder of the installed license.
package license

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/yndnr/usagemesh-go/internal/core/service"
	"github.com/yndnr/usagemesh-go/internal/telemetry/logger"
)

// Holder keeps the currently installed license.
//
// A failed load clears the installed state, so a broken license file never
// leaves a stale grant behind.
type Holder struct {
	current atomic.Pointer[State]
	secret  string
	opts    []Option
	logger  logger.Logger

	// OnChange is called after every load attempt with the new state (nil
	// when the load failed).
	OnChange func(*State)
}

// NewHolder creates an empty Holder that verifies keys with secret.
func NewHolder(secret string, log logger.Logger, opts ...Option) *Holder {
	if log == nil {
		log = logger.Default()
	}
	return &Holder{
		secret: secret,
		opts:   opts,
		logger: log,
	}
}

// Load parses key and installs it.
func (h *Holder) Load(key string) error {
	state, err := Parse(key, h.secret, h.opts...)
	if err != nil {
		h.Clear()
		h.logger.Warn("license rejected", "error", err)
		return err
	}
	h.set(state)
	sum := state.Summary()
	h.logger.Info("license installed",
		"license_id", sum.ID,
		"subject", sum.Subject,
		"tier", sum.Tier,
		"expires_at", sum.ExpiresAt,
	)
	return nil
}

// LoadFile reads a license key from path and installs it.
func (h *Holder) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		h.Clear()
		h.logger.Warn("license file unreadable", "path", path, "error", err)
		return fmt.Errorf("read license file: %w", err)
	}
	return h.Load(string(data))
}

// Clear removes the installed license.
func (h *Holder) Clear() {
	h.set(nil)
}

// Current returns the installed license or nil.
func (h *Holder) Current() *State {
	return h.current.Load()
}

// Source adapts the holder to the usage service. A missing license is
// reported as a nil interface.
func (h *Holder) Source() service.LicenseSource {
	return func() service.LicenseState {
		if s := h.Current(); s != nil {
			return s
		}
		return nil
	}
}

func (h *Holder) set(s *State) {
	h.current.Store(s)
	if h.OnChange != nil {
		h.OnChange(s)
	}
}
