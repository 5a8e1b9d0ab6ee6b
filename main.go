package main

import "deckfm/cmd"

func main() {
	cmd.Execute()
}
