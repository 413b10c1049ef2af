package main

import (
	"knntune/internal/commander"
)

func main() {
	cmd := commander.NewCommander()
	cmd.Start()
}
