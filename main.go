// SPDX-License-Identifier: MPL-2.0

// Command crxhost runs packaged web apps outside the browser.
package main

import cmd "github.com/crxhost/crxhost/cmd/crxhost"

func main() {
	cmd.Execute()
}
