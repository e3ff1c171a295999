package main

import (
	"fmt"
	"os"

	"github.com/soyeahso/zeyn/internal/cli"
	"github.com/tillberg/autorestart"
)

func main() {
	if os.Getenv("ZEYN_DEV_AUTORESTART") != "" {
		go autorestart.RestartOnChange()
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "zeyn:", err)
		os.Exit(1)
	}
}
