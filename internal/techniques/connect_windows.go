//go:build windows

package techniques

import (
	"errors"
	"syscall"
)

func isConnRefused(err error) bool {
	return errors.Is(err, syscall.WSAECONNREFUSED)
}
