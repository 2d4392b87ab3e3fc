// The main package for the carsearch executable.
package main

import (
	"github.com/JakeFAU/carsearch/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
