/*
Package log provides structured logging for clusterd using zerolog.

It wraps a single global zerolog.Logger, configured once via Init, and
offers component- and entity-scoped child loggers so call sites don't
repeat context fields.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	engineLog := log.WithComponent("engine")
	engineLog.Info().Msg("dispatcher started")

	clusterLog := log.WithClusterID(cluster.ID)
	clusterLog.Info().Str("action", a.Action).Msg("action dispatched")

# Design

Global Logger Pattern: one package-level Logger, set once in Init, read by
every other package without being threaded through constructors.

Context Logger Pattern: WithComponent/WithClusterID/WithNodeID/WithActionID
return a child logger with one field pre-bound; combine with .With() for
more than one field at a call site.

# See Also

  - https://github.com/rs/zerolog
*/
package log
