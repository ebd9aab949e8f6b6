// Package formtap is a forms/survey API extraction connector. It pulls
// forms, form questions, submission "landings" and per-submission answers
// from a paginated, rate-limited REST API and emits them as a
// self-describing record stream (schema + records + state checkpoints)
// with incremental bookmarks, so repeated runs only fetch new or updated
// data.
//
// # Architecture
//
// The connector is a single synchronous pipeline:
//
//	orchestrator → per-stream sync → HTTP client (paginated, retried)
//	            → enrichment → emitter → state checkpoint
//
// Packages:
//
//   - pkg/client: bearer-auth HTTP client with an OAuth refresh-token
//     exchange, a typed error taxonomy, and two stacked exponential
//     backoff policies (transport faults and transient service errors).
//   - pkg/state: the nested bookmark map — pure functions over stream /
//     form-id watermarks, including the parent/child minimum computation.
//   - pkg/streams: the immutable stream registry and per-stream record
//     enrichment.
//   - pkg/catalog: stream selection and per-field inclusion, plus
//     discover-mode catalog construction.
//   - pkg/tapsync: the sync engine (full-table and incremental page
//     loops, child fan-out, bookmark advancement) and the orchestrator.
//   - pkg/emitter: the outbound record sink (JSON lines).
//
// # Quick start
//
//	formtap discover > catalog.json
//	formtap sync --config config.json --catalog catalog.json --state state.json
package formtap
