package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	fiberadapter "github.com/awslabs/aws-lambda-go-api-proxy/fiber"

	"github.com/example/storefront/internal/app"
	"github.com/example/storefront/internal/config"
)

var (
	adapter *fiberadapter.FiberLambda
	cleanup func()
)

func init() {
	server, done, err := app.Build(config.Load(), app.WithInlineEffects())
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	adapter = fiberadapter.New(server)
	cleanup = done
}

func handler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return adapter.ProxyWithContext(ctx, req)
}

func main() {
	lambda.StartWithOptions(handler, lambda.WithEnableSIGTERM(func() {
		log.Println("SIGTERM received, releasing connections")
		cleanup()
	}))
}
