package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/roverops/missionctl/cmd/roverctl/app"
)

func main() {
	app.NewApp().Run()
}
