// datagen streams a jailbreak dataset from a datagen server to a file.
package main

import (
	"os"

	"github.com/ashureev/jailbreak-datagen/cmd/datagen/commands"
	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
)

func main() {
	// A missing .env is normal for the CLI.
	_ = godotenv.Load()

	if err := commands.NewRootCmd().Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}
