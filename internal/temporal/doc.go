// Package temporal runs research workflows on Temporal.
//
// The package holds the client used by the HTTP server to start, cancel and
// inspect runs, and the worker lifecycle used by cmd/worker. The workflow
// itself lives in the workflows subpackage and the activities it calls in the
// activities subpackage.
//
// # Client Setup
//
//	c, err := temporal.NewClient(temporal.ClientConfig{
//	    HostPort:  "localhost:7233",
//	    Namespace: "default",
//	    TaskQueue: "research-tasks",
//	    Logger:    observability.NewTemporalLogger(logger),
//	})
//	if err != nil {
//	    return err
//	}
//	rc := temporal.NewResearchWorkflowClient(c, cfg)
//	defer rc.Close()
//
// # Starting Workflows
//
//	workflowID, runID, err := rc.Start(ctx, workflows.ResearchWorkflow, temporal.ResearchWorkflowInput{
//	    RequestID: requestID,
//	    State:     state,
//	})
//
// The workflow ID is derived from the run ID, so starting the same run twice
// fails with ErrWorkflowAlreadyStarted.
//
// # Error Handling
//
//	if temporal.IsWorkflowNotFound(err) {
//	    // the run finished or never existed
//	}
package temporal
