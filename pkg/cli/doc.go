// Package cli provides common utilities for the voicerelay command-line
// tool.
//
// Configuration is stored in ~/.voicerelay/config.yaml and supports
// multiple named contexts similar to kubectl, each holding the upstream
// credential and endpoint overrides for one deployment.
//
// Example usage:
//
//	cfg, err := cli.LoadConfig("")
//	ctx, err := cfg.ResolveContext("")
package cli
