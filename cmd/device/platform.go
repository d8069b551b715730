package main

import (
	"os"
	"runtime"

	"github.com/fleetcore/otamqtt/update"
)

// hostPlatform answers update.PlatformInfo: Sysname and Machine come from
// the host's runtime (GOOS, GOARCH), and Version returns the string passed
// to newHostPlatform. Device bring-up is out of scope for the core client,
// so cmd/device supplies these values itself.
type hostPlatform struct {
	version string
}

func newHostPlatform(version string) *hostPlatform {
	return &hostPlatform{version: version}
}

func (p *hostPlatform) Sysname() string { return runtime.GOOS }
func (p *hostPlatform) Machine() string { return runtime.GOARCH }
func (p *hostPlatform) Version() string { return p.version }

var _ update.PlatformInfo = (*hostPlatform)(nil)

// processRebooter implements update.Rebooter by exiting the process, relying
// on a supervisor (systemd, Docker restart policy, ...) to bring it back up.
// A physical micro-device's machine.reset() has no host equivalent; exiting
// and letting a supervisor restart is the closest host analog.
type processRebooter struct{}

func (processRebooter) Reset() {
	os.Exit(0)
}

var _ update.Rebooter = processRebooter{}
