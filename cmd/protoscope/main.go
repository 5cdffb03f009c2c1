package main

import (
	"os"

	"protoscope/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
