package main

import (
	_ "time/tzdata"

	"github.com/example/court-scheduler/cmd"
)

func main() {
	cmd.Execute()
}
