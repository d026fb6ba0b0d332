package main

import (
	"os"

	"arcana/cmd/arcana"
)

func main() {
	if err := arcana.Execute(); err != nil {
		os.Exit(1)
	}
}
