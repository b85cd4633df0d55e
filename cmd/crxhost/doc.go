// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the crxhost command line.
//
// Every command receives an *App, the composition root holding the config
// provider, output streams and the process hooks tests replace.
package cmd
