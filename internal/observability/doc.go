// Package observability provides logging and metrics support for the
// collaboration graph service.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "console",
//	    Output: "stderr",
//	})
//
// Enrich it as work narrows from a run to a single institution:
//
//	logger = observability.WithRunContext(logger, report.RunID.String())
//	logger = observability.WithInstitutionContext(logger, inst.ID, inst.Name)
//
// # Metrics
//
// Metrics are registered on a caller supplied registry:
//
//	reg := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(reg, "collabgraph")
//	metrics.RecordPage(len(works))
//
// A one-shot command can persist the registry for node_exporter:
//
//	observability.WriteTextfile(reg, "/var/lib/node_exporter/collabgraph.prom")
//
// # Standard Fields
//
//   - run_id: pipeline run identifier
//   - institution_id: catalog institution identifier
//   - institution_name: roster name
//   - component: emitting component (fetcher, resolver, server, ...)
//   - sink: persistence sink name
//   - request_id: HTTP request identifier
package observability
