package main

import (
	"fmt"
	"os"

	"github.com/youyeongjin90/kimsabu/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "kimsabu:", err)
		os.Exit(1)
	}
}
