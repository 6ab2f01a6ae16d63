// Package elasto is the top-level entry point for the elasto client
// library: process-wide setup/teardown plus the vfs.Open surface it
// wraps.
package elasto

import (
	"github.com/elasto/elasto/internal/conn"
	"github.com/elasto/elasto/internal/metrics"
)

// Init prepares process-wide state (system trust store warmup) once
// per process. Callers open and close as many
// vfs.FileHandles as they like between Init and Shutdown.
func Init() error {
	metrics.Register()
	return conn.GlobalInit()
}

// Shutdown releases whatever process-wide state Init acquired. Safe to
// call even if Init was never called.
func Shutdown() {
	conn.GlobalShutdown()
}
