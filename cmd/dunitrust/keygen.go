package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dunitrust/dunitrust/accounts/keystore"
	"github.com/dunitrust/dunitrust/internal/flags"
)

var (
	dataDirFlag = &cli.StringFlag{
		Name:     "datadir",
		Usage:    "data root directory (default $HOME/.dunitrust)",
		Category: flags.MiscCategory,
	}
	memberFlag = &cli.BoolFlag{
		Name:     "member",
		Usage:    "also derive a member keypair from a passphrase",
		Category: flags.AccountCategory,
	}
	jsonFlag = &cli.BoolFlag{
		Name:     "json",
		Usage:    "output JSON instead of human-readable format",
		Category: flags.MiscCategory,
	}
)

var commandKeygen = &cli.Command{
	Name:      "keygen",
	Usage:     "generate keypairs.json for a node profile",
	ArgsUsage: " ",
	Description: `
Generates a fresh network keypair and, with --member, derives a member
keypair from an interactively entered passphrase, then writes both to
keypairs.json under the profile directory (spec.md §6).

Refuses to overwrite an existing keypairs.json.`,
	Flags: []cli.Flag{dataDirFlag, memberFlag, jsonFlag},
	Action: func(ctx *cli.Context) error {
		dir := profileDir(ctx.String(dataDirFlag.Name))
		if _, err := keystore.Load(dir); err == nil {
			Fatalf("keypairs.json already exists at %s", dir)
		}

		network, err := keystore.NewNetworkKey()
		if err != nil {
			Fatalf("Failed to generate network key: %v", err)
		}

		kp := &keystore.Keypairs{Network: network}
		if ctx.Bool(memberFlag.Name) {
			passphrase, err := readPassphrase("Member passphrase: ")
			if err != nil {
				Fatalf("Failed to read passphrase: %v", err)
			}
			salt, err := readPassphrase("Member salt (press enter to reuse the passphrase): ")
			if err != nil {
				Fatalf("Failed to read salt: %v", err)
			}
			if salt == "" {
				salt = passphrase
			}
			member, err := keystore.NewMemberKeyFromPassphrase(salt, passphrase)
			if err != nil {
				Fatalf("Failed to derive member key: %v", err)
			}
			kp.Member = &member
		}

		if err := keystore.Save(dir, kp); err != nil {
			Fatalf("Failed to write keypairs.json: %v", err)
		}

		if ctx.Bool(jsonFlag.Name) {
			mustPrintJSON(kp)
			return nil
		}
		fmt.Fprintln(os.Stdout, "Network pubkey:", kp.Network.Pub)
		if kp.Member != nil {
			fmt.Fprintln(os.Stdout, "Member pubkey: ", kp.Member.Pub)
		}
		fmt.Fprintln(os.Stdout, "Wrote", dir+"/"+keystore.FileName)
		return nil
	},
}
