package main

import (
	"os"

	"github.com/kiosk404/pluginkit/internal/pluginkitd"
)

func main() {
	if err := pluginkitd.NewApp("pluginkitd").Run(); err != nil {
		os.Exit(1)
	}
}
