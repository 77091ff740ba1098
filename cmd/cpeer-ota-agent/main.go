package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/autopeer-io/ota-agent/cmd/cpeer-ota-agent/app"
)

func main() {
	app.NewApp().Run()
}
