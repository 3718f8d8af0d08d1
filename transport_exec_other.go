//go:build !linux && !windows
// +build !linux,!windows

package dbus

import "golang.org/x/sys/execabs"

// setPdeathsig is a no-op here: Pdeathsig is a Linux-only field of
// syscall.SysProcAttr, so other POSIX platforms (Darwin, the BSDs) leave
// the child to become orphaned if the parent dies, same as upstream
// godbus's own dbus-daemon launcher does outside Linux.
func setPdeathsig(cmd *execabs.Cmd) {}
