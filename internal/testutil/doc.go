// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers for tests that fail the test on error
// instead of returning it, plus throwaway git repositories for exercising
// version-control reconciliation.
package testutil
