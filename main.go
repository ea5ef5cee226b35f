package main

import "Rippers/cmd"

func main() {
	cmd.Execute()
}
