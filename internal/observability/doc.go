// Package observability provides logging and metrics support for the
// research agent service.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//	logger = observability.WithRunContext(logger, runID, query)
//	logger.Info().Msg("run started")
//
// # Metrics
//
//	metrics := observability.NewMetrics("research_agent")
//	metrics.RecordSearchStarted("wikipedia")
//	metrics.RecordStage("analyzer", elapsed.Seconds(), state.HasFailed())
//
// # Context Helpers
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	ctx = observability.WithRunID(ctx, runID)
//	rc := observability.RunContextFromContext(ctx)
//
// # Standard Fields
//
//   - request_id: HTTP request identifier
//   - run_id: research run identifier
//   - query: the user's research query
//   - stage: pipeline stage (researcher, analyzer, critic, writer)
//   - backend: search backend (wikipedia, duckduckgo, brave)
//   - workflow_id, workflow_run_id: Temporal identifiers
//
// All components are safe for concurrent use from multiple goroutines.
package observability
