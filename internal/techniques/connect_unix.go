//go:build linux || darwin || freebsd || netbsd || openbsd

package techniques

import (
	"errors"
	"syscall"
)

func isConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
