// framectl drives the pipeline and the panel from the command line,
// for one-off renders and for debugging a frame without the server.
package main

import (
	"context"
	"log"
	"os"

	_ "github.com/deepteams/webp"
)

func main() {
	if err := command.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
