package main

import "thoreinstein.com/chronicle/cmd"

func main() {
	cmd.Execute()
}
