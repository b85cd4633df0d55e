// SPDX-License-Identifier: MPL-2.0

// Package benchmark covers the startup and request hot paths for PGO
// profile generation:
//   - manifest parsing and schema validation
//   - identifier derivation and package location
//   - resource serving, cold and cached, directly and over the HTTP bridge
//
// To generate a profile:
//
//	go test ./internal/benchmark -run '^$' -bench . -cpuprofile default.pgo
package benchmark
