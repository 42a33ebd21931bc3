package main

import (
	"os"

	"go-workshop-sync/cmd/workshop-sync/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
