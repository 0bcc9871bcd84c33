package subprocess

import (
	"os"
	"syscall"
)

// newProcAttr starts the child in its own process group so terminateGroup/
// killGroup can signal the whole tree, not just the direct child.
func newProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

func baseEnv() []string {
	return os.Environ()
}
