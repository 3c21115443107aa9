package main

import (
	"os"

	"github.com/tern-cli/tern/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
