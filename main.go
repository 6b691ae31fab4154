// The main package for the urlfinder executable.
package main

import (
	"github.com/JakeFAU/urlfinder/cmd"
)

func main() {
	cmd.Execute()
}
