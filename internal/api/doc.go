// Package api serves the agent's local HTTP status endpoint.
//
// It is read-only and meant for the LAN or loopback: a health probe for
// supervisors and a status document showing the lifecycle phase, the
// component inventory and the per-task counters.
//
//	srv, err := api.New(api.Deps{Config: cfg.Status, Logger: log, Status: coord})
//	srv.Start(ctx)
//	defer srv.Close()
//
// Routes:
//
//	GET /api/v1/health   {"status":"ok|degraded","version":"...","checks":{...}}
//	GET /api/v1/status   lifecycle.Status as JSON
package api
