package main

import (
	"os"

	"github.com/wbrc/legacy/internal/cli"
	"github.com/wbrc/legacy/internal/session"
)

const short = "Open a file encrypted for a group of key holders"

const long = `legacy-decrypt opens a file that was encrypted for a group of key holders,
once enough of them have brought their key files together.

It expects exactly one encrypted '.age' file and its 'recipients.yaml' key
configuration in <home>/encrypted, asks for one key file at a time until the
configured threshold is met and writes the decrypted file to the output
directory. Nothing derived from the key files outlives the session.`

func main() {
	os.Exit(cli.Execute(cli.Command("legacy-decrypt", short, long, session.Decrypt)))
}
