package main

import (
	"os"

	"github.com/satishbabariya/prisma-engines-go/cli/commands"
	"github.com/satishbabariya/prisma-engines-go/cli/internal/ui"
)

func main() {
	if err := commands.Execute(); err != nil {
		ui.PrintError("%v", err)
		os.Exit(1)
	}
}
