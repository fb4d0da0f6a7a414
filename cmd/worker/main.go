// Command worker runs only the tier worker pools; it is equivalent to
// `tripgen worker`.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/suPer8Hu/tripgen/internal/cmd"
)

func main() {
	root := cmd.NewRootCommand()
	root.SetArgs(append([]string{"worker"}, os.Args[1:]...))
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "worker:", err)
		os.Exit(1)
	}
}
