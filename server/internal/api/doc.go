// Package api implements the goldensig HTTP API.
//
// New(opts) returns a Handler that serves:
//
//	GET    /api/v1/health                          dataset rows, sessions, stream clients
//	GET    /api/v1/batches                         full scored dataset
//	GET    /api/v1/batches/{batchID}               one scored batch; 404 if unknown
//	GET    /api/v1/summary                         per-column min/max/mean/stddev
//	GET    /api/v1/export?format=csv|xlsx          input columns + derived scores
//	GET    /api/v1/trend                           optimization score per batch
//	GET    /api/v1/trend.png[?session=id]          trend chart, golden marked
//	POST   /api/v1/sessions                        new session at the initial golden
//	GET    /api/v1/sessions/{id}                   golden overview
//	DELETE /api/v1/sessions/{id}                   end session
//	GET    /api/v1/sessions/{id}/evaluate/{batch}  verdict, recommendations, savings
//	POST   /api/v1/sessions/{id}/approve           {"batch_id"}; 409 unless OUTPERFORMS
//	POST   /api/v1/sessions/{id}/reset             restore the initial golden
//	GET    /api/v1/sessions/{id}/approvals         audit trail from the ledger
//	GET    /metrics                                Prometheus text exposition
//	GET    /ws/sessions/{id}                       WebSocket golden stream
//
// Errors are returned as {"error": "..."} with 400, 401, 404, 409, 503 or 500.
// JSON types are defined in types.go.
package api
