package main

import "github.com/devicelab-dev/roku-driver/pkg/cli"

func main() {
	cli.Execute()
}
