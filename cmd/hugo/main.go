package main

import (
	"os"

	"github.com/leafsii/hugo/internal/cli"
)

func main() {
	cl := cli.NewCLI(os.Stdout, os.Stderr)
	os.Exit(cl.Run(os.Args))
}
