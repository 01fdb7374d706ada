//go:build !linux

package main

import "uav-control-manager/internal/logger"

func lockMemory(l *logger.Logger) {}
