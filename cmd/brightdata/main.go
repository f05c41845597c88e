package main

import (
	"context"

	"github.com/JakeFAU/brightdata-go/cmd"
)

func main() {
	cmd.Execute(context.Background())
}
