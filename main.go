package main

import "github.com/florinutz/icefloe/cmd"

func main() {
	cmd.Execute()
}
