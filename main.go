package main

import (
	"os"

	"tiltakspenger-overgangsstonad/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		os.Exit(1)
	}
}
