// Where: cmd/hybridless/main.go
// What: Process entrypoint.
// Why: The exit code comes from app.Run; buffered log entries are flushed before exiting.
package main

import (
	"fmt"
	"os"

	"github.com/hybridless/hybridless/internal/app"
	"github.com/hybridless/hybridless/internal/meta"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	deps, err := buildDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", meta.AppName, err)
		return 1
	}
	defer func() { _ = deps.Log.Sync() }()
	return app.Run(args, deps)
}
