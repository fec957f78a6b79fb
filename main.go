// The main package for the docs-discovery-console executable.
package main

import "github.com/JakeFAU/docs-discovery-console/cmd"

func main() {
	cmd.Execute()
}
