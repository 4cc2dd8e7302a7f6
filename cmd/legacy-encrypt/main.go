package main

import (
	"os"

	"github.com/wbrc/legacy/internal/cli"
	"github.com/wbrc/legacy/internal/session"
)

const short = "Encrypt a file for a group of key holders"

const long = `legacy-encrypt encrypts a file so that it can only be opened when a chosen
number of key holders bring their key files together.

It either generates new key files or reuses the key configuration already in
<home>/encrypted, then writes the encrypted file next to that configuration.
Generated key files must be handed to their holders and deleted afterwards.`

func main() {
	os.Exit(cli.Execute(cli.Command("legacy-encrypt", short, long, session.Encrypt)))
}
