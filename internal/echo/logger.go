package echo

import (
	"github.com/rs/zerolog"

	"github.com/wtask/netube/internal/echo/registry"
)

// connLogger - derives logger which marks every record with connection details.
func connLogger(l zerolog.Logger, h *registry.Handle) zerolog.Logger {
	return l.With().
		Str("conn", h.ID.String()).
		Str("remote", h.Remote()).
		Logger()
}
