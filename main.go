package main

import (
	"github.com/ColonelBlimp/whistlecounter/cmd"
	"github.com/ColonelBlimp/whistlecounter/internal/recovery"
)

func main() {
	defer recovery.HandlePanic()
	cmd.Execute()
}
