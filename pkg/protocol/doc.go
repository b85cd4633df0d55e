// SPDX-License-Identifier: MPL-2.0

// Package protocol serves the files of a resolved app package through an
// address-based resource protocol.
//
// Addresses have the form <scheme>://<namespace>/<relative-path>[?query],
// where the namespace must equal the resolved app identifier. A Server is
// activated against one ResolvedApp and registers itself in a Registry under
// its scheme; only one Server may hold a scheme at a time.
//
// Every payload (or failure) is cached per full address for the lifetime of
// an activation: package contents are assumed static until the process is
// relaunched. Concurrent first requests for one address share a single file
// read. Any filesystem failure, including a path that escapes the package
// root, collapses to ResourceUnavailableError.
package protocol
