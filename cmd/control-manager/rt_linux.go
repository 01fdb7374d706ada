//go:build linux

package main

import (
	"golang.org/x/sys/unix"

	"uav-control-manager/internal/logger"
)

// lockMemory keeps the process resident so a control cycle never waits on a
// page fault.
func lockMemory(l *logger.Logger) {
	if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
		l.Warnf("Failed to lock memory: %v", err)
		return
	}
	l.Debugf("Process memory locked")
}
