package main

import "uart-terminal/cmd"

func main() {
	cmd.Execute()
}
