// SPDX-License-Identifier: MPL-2.0

// Package platform holds portability checks for the files psmbuild writes.
package platform

import (
	"slices"
	"strings"
)

// windowsDeviceNames cannot be used as a file name on Windows, whatever the
// extension.
var windowsDeviceNames = []string{
	"CON", "PRN", "AUX", "NUL",
	"COM1", "COM2", "COM3", "COM4", "COM5", "COM6", "COM7", "COM8", "COM9",
	"LPT1", "LPT2", "LPT3", "LPT4", "LPT5", "LPT6", "LPT7", "LPT8", "LPT9",
}

// IsWindowsReservedName reports whether name is a Windows device name once
// everything from the first dot on is removed. Case and trailing spaces are
// ignored, as Windows ignores them.
func IsWindowsReservedName(name string) bool {
	stem, _, _ := strings.Cut(name, ".")
	stem = strings.ToUpper(strings.TrimRight(stem, " "))
	return slices.Contains(windowsDeviceNames, stem)
}
