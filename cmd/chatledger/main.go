// Package main is the entry point for the chatledger CLI.
package main

import (
	"os"

	"chat-to-rich/cmd/chatledger/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
