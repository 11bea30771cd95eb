package main

import (
	"github.com/josephlewis42/pgsh/cmd"
	"github.com/josephlewis42/pgsh/commands"
)

func main() {
	commands.RunBuiltinChild()
	cmd.Execute()
}
