package main

import "go.vocdoni.io/anonvote/cmd/ballotcli/commands"

func main() {
	commands.Execute()
}
