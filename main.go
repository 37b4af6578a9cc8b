package main

import "github.com/carebridge/assist-chat/cmd"

func main() {
	cmd.Execute()
}
