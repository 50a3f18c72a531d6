// Package http provides HTTP handlers and middleware for the alarm API.
//
// The router exposes the following endpoints:
//   - GET /alarms, POST /alarms, GET /alarms/{id}, PUT /alarms/{id},
//     DELETE /alarms/{id}: alarm management endpoints exchanging the
//     `alarmDTO` payload defined in alarm_handler.go.
//   - POST /alarms/{id}/toggle: flips the enabled flag without touching the
//     rest of the record. Body: {"enabled"}.
//   - POST /alarms/{id}/snooze: snoozes the ringing session for that alarm
//     and responds with the snooze target instant.
//   - GET /alarms/next: reports the enabled alarm with the soonest
//     occurrence, or 204 No Content when nothing is enabled.
//   - GET /ringing: reports the active ringing session, if any.
//   - GET /events: a server-sent event stream of alarm store mutations, one
//     `change` event per mutation.
//   - GET /healthz: liveness probe.
//   - GET /metrics: Prometheus metrics.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
