package main

import (
	"os"

	"github.com/md-rashed-zaman/fitbook/services/booking-service/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
