package main

import (
	"fmt"
	"os"

	"github.com/ytget/yt-relay/internal/app"
)

func main() {
	if err := app.Main(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "yt-relay: %v\n", err)
		os.Exit(1)
	}
}
