package fiberflow

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// pipelineLogger derives the logger of one subscription: the operator name
// plus a flow id correlating all events of the subscription.
func pipelineLogger(base zerolog.Logger, op string) zerolog.Logger {
	return base.With().
		Str("op", op).
		Str("flow_id", uuid.NewString()).
		Logger()
}
