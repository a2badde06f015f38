package flags

import "github.com/urfave/cli/v2"

const (
	CurrencyCategory   = "CURRENCY"
	AccountCategory    = "ACCOUNT"
	NetworkingCategory = "NETWORKING"
	APICategory        = "API AND CONSOLE"
	LoggingCategory    = "LOGGING AND DEBUGGING"
	MiscCategory       = "MISC"
)

func init() {
	cli.HelpFlag.(*cli.BoolFlag).Category = MiscCategory
	cli.VersionFlag.(*cli.BoolFlag).Category = MiscCategory
}
