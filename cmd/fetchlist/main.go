package main

import "github.com/JohnPlummer/jp-go-fetchlist/internal/cli"

func main() {
	cli.Execute()
}
