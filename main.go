package main

import "github.com/dupctl/dupctl/cmd"

func main() {
	cmd.Execute()
}
