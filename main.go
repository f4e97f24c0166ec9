package main

import "github.com/nextlevelbuilder/chatclaw/cmd"

func main() {
	cmd.Execute()
}
