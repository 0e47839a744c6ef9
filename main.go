package main

import (
	"os"

	"github.com/kmarsh/promptarena/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
