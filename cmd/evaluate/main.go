package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hackhub/submissions-api/cmd/evaluate/cmds"
	"github.com/hackhub/submissions-api/internal/exit"
)

func runApp(ctx context.Context) int {
	err := cmds.Execute(ctx, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
	}

	return exit.Code(err)
}

func main() {
	ctx := context.Background()
	os.Exit(runApp(ctx))
}
