package testlog

import (
	"testing"

	"github.com/rs/zerolog/log"

	"github.com/stellar-aria/oledview/internal/observability"
)

func Start(t *testing.T) {
	t.Helper()
	observability.ConfigureTests()
	log.Debug().Str("test", t.Name()).Msg("start")
}
