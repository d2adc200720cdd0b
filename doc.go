// Package flowvia provides a generic, embeddable workflow orchestration
// engine.
//
// A workflow is a DAG of declarative steps, each bound to an agent that
// consumes and produces named data keys. The engine validates the graph,
// computes a dependency-respecting execution order, resolves every step's
// inputs from a shared execution context and dispatches agents with timeout
// and retry handling, while an event bus and a pluggable state store track
// progress.
//
// End-users typically interact with the engine via the high-level Service
// façade exposed by the root package:
//
//	srv, _ := flowvia.New(flowvia.WithAgent("analyst", analyst))
//	rt := srv.Runtime()
//	wf, _ := rt.LoadWorkflow(ctx, "research.yaml")
//	result, _ := rt.Execute(ctx, wf.ID, map[string]interface{}{"topic": "go"})
//
// For more details see the README and individual sub-packages.
package flowvia
