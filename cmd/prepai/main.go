// Command prepai is the entry point for the interview question recommender.
// It provides a CLI interface (via Cobra) and an HTTP server that recommends
// questions for a job description and reviews candidate answers.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/prepai-go/cmd/prepai/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
