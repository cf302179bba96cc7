package main

import (
	"os"

	"github.com/romariotrain/asset-pipeline/internal/app"
)

func main() {
	os.Exit(app.Run("worker", run))
}
