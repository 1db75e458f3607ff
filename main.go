package main

import "github.com/vibast-solutions/ms-go-plans/cmd"

func main() {
	cmd.Execute()
}
