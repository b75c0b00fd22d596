package main

import (
	"context"
	"flightcore/internal/cli"
	"fmt"
	"os"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
