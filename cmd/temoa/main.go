package main

import (
	"fmt"
	"os"

	"github.com/jeff-ws/temoa/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "temoa:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
