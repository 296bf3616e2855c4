package main

import "github.com/yz4230/rolling/cmd"

func main() {
	cmd.Execute()
}
