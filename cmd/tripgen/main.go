package main

import (
	"context"
	"fmt"
	"os"

	"github.com/suPer8Hu/tripgen/internal/cmd"
)

func main() {
	if err := cmd.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "tripgen:", err)
		os.Exit(1)
	}
}
