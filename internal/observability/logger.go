package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger derives an app-tagged logger from the configured global one.
func Logger(app string) zerolog.Logger {
	return log.With().Str("app", app).Logger()
}
