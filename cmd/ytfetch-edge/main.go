// Command ytfetch-edge serves the HTTP API from an AWS Lambda function URL
// with response streaming enabled.
package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/famomatic/ytfetch/internal/cli"
	"github.com/famomatic/ytfetch/internal/edge"
)

func main() {
	srv, closer, err := cli.BuildServer(context.Background(), os.Getenv("YTFETCH_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise ytfetch")
	}
	defer closer.Close()

	lambda.Start(edge.NewAdapter(srv.Handler()).Handle)
}
