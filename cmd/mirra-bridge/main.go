package main

import "github.com/mirra-world/claude-bridge/internal/cmd"

func main() {
	cmd.Execute()
}
