package main

import "github.com/carbonfi/carbonfi/cmd"

func main() {
	cmd.Execute()
}
