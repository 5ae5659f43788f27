package main

import "emocli/cmd"

func main() {
	cmd.Execute()
}
