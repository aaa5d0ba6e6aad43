// Package main is the entry point for the rawframe frame builder.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/rawframe/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
