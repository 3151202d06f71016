package main

import (
	"momox-agent/cmd/momox-agent/cmd"
)

func main() {
	cmd.Execute()
}
