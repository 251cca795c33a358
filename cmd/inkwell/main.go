package main

import (
	"fmt"
	"os"

	"github.com/inkwell-ai/inkwell/cmd/inkwell/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
