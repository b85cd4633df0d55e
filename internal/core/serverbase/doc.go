// SPDX-License-Identifier: MPL-2.0

// Package serverbase provides a reusable activate/deactivate state machine
// for components that serve requests between two explicit lifecycle calls.
//
// Unlike a single-use server, a Base can cycle Inactive -> Activating ->
// Active -> Deactivating -> Inactive any number of times. State reads are
// atomic and lock-free; transitions use compare-and-swap so concurrent
// Activate or Deactivate calls resolve to exactly one winner.
package serverbase
