// SPDX-License-Identifier: MPL-2.0

// Package watch reports debounced changes under an app directory.
//
// The host never reloads a package in place: a change ends the run and the
// command relaunches the process, so the watcher only has to say that
// something changed and what.
package watch
