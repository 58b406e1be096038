package main

import (
	"github.com/caskstore/cask/cmd/caskd/cmd"
)

func main() {
	cmd.Execute()
}
