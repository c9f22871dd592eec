package main

import (
	"os"

	"github.com/telhawk-systems/mailtap/internal/cli"
	"github.com/telhawk-systems/mailtap/pkg/output"
)

func main() {
	if err := cli.Execute(); err != nil {
		output.Error("%v", err)
		os.Exit(1)
	}
}
