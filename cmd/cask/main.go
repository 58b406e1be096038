package main

import (
	"github.com/caskstore/cask/cmd/cask/cmd"
)

func main() {
	cmd.Execute()
}
