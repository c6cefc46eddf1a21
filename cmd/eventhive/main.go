package main

import "github.com/eventhive/eventhive/cmd/eventhive/cmd"

func main() {
	cmd.Execute()
}
