/*
Package log provides structured logging for the upgrade service using zerolog.

The package wraps a single global zerolog.Logger that every other package
writes to. It is initialised once from configuration (level and output format)
and handed out as child loggers that carry context fields such as the
component, the cluster or node being worked on, or the transformation domain.

# Configuration

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	log.Init(log.Config{
		Level:      level,
		JSONOutput: cfg.Log.JSON,
		Output:     os.Stderr,
	})

JSON output is meant for production; console output (RFC3339 timestamps,
colourised levels) is meant for operators running the CLI by hand.

# Context Loggers

	clusterLog := log.WithClusterID(orig.ID)
	clusterLog.Info().Str("seed_cluster_id", seed.ID).Msg("Cluster cloned")

	domainLog := log.WithDomain("cluster")
	domainLog.Debug().Str("version", "9.0").Str("transformer", "dns_list").Msg("Applying transformer")

Fields used across the code base:

  - component: subsystem name (api, upgrade, tasks, transformations, storage)
  - cluster_id, seed_cluster_id, orig_cluster_id
  - node_id, task_id
  - domain, version, transformer: transformation registry context

# Levels

Debug is used for every applied transformer and for store lookups while
computing mappings. Info marks the completion of orchestration steps. Warn is
used for recoverable anomalies (a provisioning task that failed on a node).
Error is used when a migration step cannot run, right before the error is
returned to the caller.
*/
package log
