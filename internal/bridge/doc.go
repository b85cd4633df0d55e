// SPDX-License-Identifier: MPL-2.0

// Package bridge exposes the resource protocol over loopback HTTP so a
// rendering surface without custom scheme support can load app resources.
//
// Routes:
//
//	GET /app/:namespace/*path  resource at <scheme>://<namespace>/<path>
//	GET /healthz               200 while a protocol handler is registered
//	GET /metrics               Prometheus metrics
//
// Protocol errors map onto status codes: ResourceUnavailableError is 404,
// NamespaceMismatchError is 403, and a missing or inactive handler is 503.
package bridge
