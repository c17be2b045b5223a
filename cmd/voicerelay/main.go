// Package main provides the voicerelay gateway binary.
//
// Usage:
//
//	voicerelay [flags] <command> [args]
//
// Commands:
//
//	serve    - Run the realtime voice gateway
//	config   - Configuration management
//
// Configuration:
//
//	The CLI stores configuration in ~/.voicerelay/
//	Use 'voicerelay config' commands to manage contexts.
package main

import (
	"fmt"
	"os"

	"github.com/medivoice/voicerelay/cmd/voicerelay/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
