// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the psmbuild command line.
//
// The root command carries the global --verbose and --config flags; build,
// inspect, explain and config hang off it. Commands that fail after printing
// their own output return an *ExitError so the process exits with the
// right status without the error being printed twice.
package cmd
