package main

import "github.com/molstudio/molchat/cmd"

func main() {
	cmd.Execute()
}
