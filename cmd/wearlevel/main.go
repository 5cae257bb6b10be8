package main

import (
	"github.com/ssargent/wearlevel/cmd/wearlevel/cmd"
	"github.com/ssargent/wearlevel/pkg/di"
)

func main() {
	// Initialize dependency injection container
	container := di.NewContainer()

	// Inject dependencies into cmd package
	cmd.SetContainer(container)

	cmd.Execute()
}
