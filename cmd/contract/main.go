package main

import (
	"fmt"

	"github.com/alecthomas/kong"
	"github.com/broady/contract/cmd/contract/internal/call"
	"github.com/broady/contract/cmd/contract/internal/check"
	"github.com/broady/contract/cmd/contract/internal/mock"
	"github.com/broady/contract/cmd/contract/internal/routes"
)

type CLI struct {
	Version VersionCmd `cmd:"" help:"Print version information."`
	Check   check.Cmd  `cmd:"" help:"Load an OpenAPI document and report on its endpoints."`
	Routes  routes.Cmd `cmd:"" help:"List endpoints."`
	Mock    mock.Cmd   `cmd:"" help:"Serve mock responses for every endpoint."`
	Call    call.Cmd   `cmd:"" help:"Call an endpoint by alias."`
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(versionLine())
	return nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("contract"),
		kong.Description("Inspect, mock and call APIs described by OpenAPI documents."),
		kong.UsageOnError(),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
