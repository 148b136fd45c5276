package main

import "cinecircle/cmd/cli/command"

func main() {
	command.Execute()
}
