package main

import (
	"fmt"
	"os"

	"github.com/mahls/lara-auth/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "lara-auth: %v\n", err)
		os.Exit(1)
	}
}
