package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/dunitrust/dunitrust/accounts/keystore"
	"github.com/dunitrust/dunitrust/index"
	"github.com/dunitrust/dunitrust/internal/flags"
	"github.com/dunitrust/dunitrust/log"
	"github.com/dunitrust/dunitrust/node"
	"github.com/dunitrust/dunitrust/params"
	"github.com/dunitrust/dunitrust/store/leveldb"
	"github.com/dunitrust/dunitrust/validation"
)

var currencyFlag = &cli.StringFlag{
	Name:     "currency",
	Usage:    "currency to host (only \"g1\" ships built-in parameters)",
	Value:    "g1",
	Category: flags.CurrencyCategory,
}

var commandRun = &cli.Command{
	Name:      "run",
	Usage:     "start the node",
	ArgsUsage: " ",
	Flags:     []cli.Flag{dataDirFlag, currencyFlag},
	Action: func(ctx *cli.Context) error {
		currency := ctx.String(currencyFlag.Name)
		if currency != "g1" {
			Fatalf("unknown currency %q (only \"g1\" ships built-in parameters)", currency)
		}

		dir := profileDir(ctx.String(dataDirFlag.Name))
		keys, err := keystore.Load(dir)
		if err != nil {
			Fatalf("Failed to read keypairs.json at %s: %v (run \"dunitrust keygen\" first)", dir, err)
		}

		currencyDir := filepath.Join(dir, currency)
		if err := os.MkdirAll(currencyDir, 0700); err != nil {
			Fatalf("Failed to create currency directory %s: %v", currencyDir, err)
		}
		db, err := leveldb.New(filepath.Join(currencyDir, "index"), 0, 0)
		if err != nil {
			Fatalf("Failed to open index store: %v", err)
		}
		defer db.Close()

		writer := index.NewWriter(db)
		engine := validation.NewEngine(params.DefaultG1)

		n := node.New(node.Meta{Currency: currency, Profile: currencyDir}, keys)
		n.Register(&coreModule{writer: writer, engine: engine}, nil)

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		code, err := n.Run(runCtx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "node exited:", err)
		}
		os.Exit(code)
		return nil
	},
}

// coreModule is the Required module that owns the index store and
// validation engine for the hosted currency (spec.md §4.8's block
// processor). It registers with the router immediately, then idles
// until Shutdown — the peer-to-peer transport, query API, and TUI
// modules that would feed it real blocks are all explicit non-goals
// (spec.md §1).
type coreModule struct {
	writer *index.Writer
	engine *validation.Engine
}

func (c *coreModule) Name() string                    { return "core" }
func (c *coreModule) Priority() node.Priority          { return node.Required }
func (c *coreModule) RequiredKeys() node.RequiredKeys  { return node.KeysAll }
func (c *coreModule) HaveSubcommand() bool             { return false }
func (c *coreModule) ExecSubcommand(node.Meta, node.Keys, any, any, []string) (any, error) {
	return nil, nil
}

func (c *coreModule) Start(ctx context.Context, meta node.Meta, keys node.Keys, conf any, sendToRouter chan<- node.Message) error {
	logger := log.New("pkg", "core", "currency", meta.Currency)
	inbox := make(chan node.Message, 8)
	sendToRouter <- node.RegisterModule{Name: c.Name(), ReplyTo: inbox}
	logger.Info("core module registered", "profile", meta.Profile)

	for {
		select {
		case <-ctx.Done():
			logger.Info("core module stopping")
			return nil
		case msg := <-inbox:
			if _, ok := msg.(node.Shutdown); ok {
				logger.Info("core module received shutdown")
				return nil
			}
		}
	}
}
