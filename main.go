package main

import "github.com/devloophq/devloop/cmd"

func main() {
	cmd.Execute()
}
