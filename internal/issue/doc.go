// SPDX-License-Identifier: MPL-2.0

// Package issue holds psmbuild's user-facing error layer: ActionableError,
// which carries the operation, resource and remediation hints of a failure,
// and a catalog of markdown guidance rendered with glamour by
// `psmbuild explain` and by verbose failure output.
package issue
