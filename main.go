// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/pkgchan/pkgchan/cmd/pkgchan"

func main() {
	cmd.Execute()
}
