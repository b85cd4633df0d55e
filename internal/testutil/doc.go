// SPDX-License-Identifier: MPL-2.0

// Package testutil builds app package fixtures for tests: unpacked
// directories (WritePackage, ManifestJSON) and CRX2/CRX3/zip archives
// (BuildCRX2, BuildCRX3, BuildZip). The Must* helpers fail the test
// instead of returning errors.
package testutil
