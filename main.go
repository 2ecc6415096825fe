package main

import "github.com/jmehdipour/match-stream/cmd"

func main() {
	cmd.Execute()
}
