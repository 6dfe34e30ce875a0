package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/roverops/missionctl/cmd/rover-sim/app"
)

func main() {
	app.NewApp().Run()
}
