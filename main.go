package main

import (
	"github.com/chuanqi87/agent/cmd"
)

func main() {
	cmd.Execute()
}
