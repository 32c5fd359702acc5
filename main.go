package main

import "github.com/manifest-network/factoryctl/cmd/factoryctl"

func main() {
	factoryctl.Execute()
}
