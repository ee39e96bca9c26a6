package registry

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrHostRequired is fatal: client configs cannot be rendered without a public host.
	ErrHostRequired = errors.New("wg.host must be set (WG_HOST)")

	ErrPeerNotFound     = errors.New("peer not found")
	ErrNameRequired     = errors.New("missing name")
	ErrInvalidAddress   = errors.New("invalid address")
	ErrAddressExhausted = errors.New("no free address left in the tunnel subnet")

	ErrKernelUnsupported = errors.New("this usually means the host's kernel does not support WireGuard")
)

// StatusCode maps a registry error to the HTTP status to report it with.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrPeerNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNameRequired), errors.Is(err, ErrInvalidAddress):
		return http.StatusBadRequest
	case errors.Is(err, ErrAddressExhausted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// upError rewrites the one wg-quick failure that has a known cause.
func upError(err error) error {
	if strings.Contains(err.Error(), "Cannot find device") {
		return fmt.Errorf("wireguard exited with the error: %w; %w", err, ErrKernelUnsupported)
	}
	return err
}
