// Command dslc compiles posting templates and evaluates them against vouchers offline.
package main

import (
	"github.com/alecthomas/kong"
)

var cli struct {
	Check CheckCmd `cmd:"" help:"Compile template files and report every error."`
	Eval  EvalCmd  `cmd:"" help:"Evaluate a template against a voucher JSON file."`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("dslc"),
		kong.Description("Posting template compiler."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run())
}
