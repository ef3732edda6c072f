// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/psmbuild/psmbuild/cmd/psmbuild"

func main() {
	cmd.Execute()
}
