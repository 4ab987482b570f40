package main

import "cryogon/rizumu-fetch/cmd"

func main() {
	cmd.Execute()
}
