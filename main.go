// ./main.go
package main

import (
	"github.com/xkilldash9x/stagecheck/cmd"
	"github.com/xkilldash9x/stagecheck/internal/observability"
)

// main is the entry point for the stagecheck CLI.
func main() {
	defer observability.Sync()
	cmd.Execute()
}
