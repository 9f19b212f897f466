package main

import (
	"os"

	"github.com/wesleyorama2/loadgate/internal/cli"
)

// Main runs the CLI and returns the process exit status.
func Main() int {
	return cli.Execute()
}

func main() {
	os.Exit(Main())
}
