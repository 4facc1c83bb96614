package main

import "github.com/olafkfreund/cosmic-ext-rdp-server/cmd/cosmic-ext-rdp-server/commands"

func main() {
	commands.Execute()
}
