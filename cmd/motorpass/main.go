package main

import "github.com/MeKo-Tech/motorpass/cmd/motorpass/cmd"

func main() {
	cmd.Execute()
}
