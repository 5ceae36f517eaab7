// SPDX-License-Identifier: MIT

package daemon

import "errors"

var (
	// ErrServerStartFailed is returned when a listener fails for any reason other than shutdown.
	ErrServerStartFailed = errors.New("server failed to start")
)
