package main

import "github.com/forgeline/forgeline/cmd"

func main() {
	cmd.Execute()
}
