// Package api hosts the HTTP server, middleware and REST handlers. Routes:
//   - GET /healthz and /readyz for probes, GET /metrics for Prometheus.
//   - POST /api/discover and /api/crawl forward a single call to the backend
//     and mirror its response shape.
//   - GET /api/session, POST /api/session/discover, POST /api/session/crawl
//     and GET /api/session/document drive the orchestrator; the document is
//     served as markdown or HTML, with an outline at /document/outline.
//   - GET /api/notifications serves the most recent notifications.
package api
