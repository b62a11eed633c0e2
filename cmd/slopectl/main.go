// slopectl drives Slope projections and reports through the Slope API.
package main

import (
	"os"

	"slopectl/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
