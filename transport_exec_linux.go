//go:build linux
// +build linux

package dbus

import (
	"syscall"

	"golang.org/x/sys/execabs"
)

// setPdeathsig arranges for the kernel to signal the child if this
// process exits first, mirroring the bus-daemon spawn logic this module's
// teacher uses on every platform but Darwin.
func setPdeathsig(cmd *execabs.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Pdeathsig = syscall.SIGTERM
}
