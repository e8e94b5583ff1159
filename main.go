package main

import (
	"context"
	"os"

	"github.com/evmtrack/evmtrack/cmd"
)

func main() {
	if err := cmd.RootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
