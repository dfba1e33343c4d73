// Package launcher starts assembly processes on the local machine.
//
// ExecLauncher wraps os/exec: it starts the process without waiting, hands
// back a handle carrying a uuid identifier, and extracts the exit code when
// the caller waits. Environment handling is additive: the process inherits
// the parent environment with the launch configuration's variables layered
// on top.
package launcher
