package main

import (
	app "syncBoard/cmd/app"
)

func main() {
	app.GetApp().LetsGo()
}
