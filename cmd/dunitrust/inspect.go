package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/dunitrust/dunitrust/accounts/keystore"
)

var commandInspect = &cli.Command{
	Name:      "inspect",
	Usage:     "print the public keys held by a node profile",
	ArgsUsage: " ",
	Flags:     []cli.Flag{dataDirFlag, jsonFlag},
	Action: func(ctx *cli.Context) error {
		dir := profileDir(ctx.String(dataDirFlag.Name))
		kp, err := keystore.Load(dir)
		if err != nil {
			Fatalf("Failed to read keypairs.json at %s: %v", dir, err)
		}

		if ctx.Bool(jsonFlag.Name) {
			out := struct {
				Member  string `json:"member,omitempty"`
				Network string `json:"network"`
			}{Network: kp.Network.Pub}
			if kp.Member != nil {
				out.Member = kp.Member.Pub
			}
			mustPrintJSON(out)
			return nil
		}

		fmt.Println("Network pubkey:", kp.Network.Pub)
		if kp.Member != nil {
			fmt.Println("Member pubkey: ", kp.Member.Pub)
		} else {
			fmt.Println("Member pubkey:  (none)")
		}
		return nil
	},
}
