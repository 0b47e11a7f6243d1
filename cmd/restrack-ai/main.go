// Command restrack-ai forecasts supply consumption and budgets and flags
// anomalous consumption, asset disposals and purchasing.
//
//	restrack-ai seed      load a synthetic dataset into the store
//	restrack-ai analyze   run one analysis and print it as JSON
//	restrack-ai serve     HTTP API, websocket stream and scheduled runs
package main

import (
	"fmt"
	"os"

	"github.com/restrack/restrack-ai/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
