// legacy-decrypt opens a file that was encrypted for a group of key holders,
// once enough of them have brought their key files together.
//
// Usage:
// legacy-decrypt [flags]
//
// The program is interactive. It expects exactly one encrypted '.age' file and
// its 'recipients.yaml' key configuration in <home>/encrypted, asks for one key
// file at a time until the configured threshold is met and writes the
// decrypted file to the output directory. The age, age-keygen and
// age-plugin-sss binaries must be present in <home>/binaries.
//
// Flags:
//
//	--allow-repeated-keys
//	  	let two files holding the same key both count toward the threshold
//	--bin-dir string
//	  	directory holding the age binaries (default: <home>/binaries)
//	--encrypted-dir string
//	  	directory holding the ciphertext and its key configuration
//	--home string
//	  	directory holding binaries/, encrypted/ and keys/ (default: the
//	  	executable's directory)
//	--keys-dir string
//	  	directory the key file chooser starts in (default: <home>/keys)
//	--log-file string
//	  	write JSON logs to this file instead of stderr
//	--log-level string
//	  	log level (default "error")
//	--no-color
//	  	disable colored output
//	--output-dir string
//	  	directory the decrypted file is written to (default: ~/Desktop)
//	--tool-timeout duration
//	  	maximum time a single tool invocation may take (default 2m0s)
//
// Every flag can also be set through the environment as LEGACY_<FLAG>, for
// example LEGACY_TOOL_TIMEOUT=5m.
//
// Example:
// Decrypt with a key folder on a USB stick:
//
// > legacy-decrypt --keys-dir /media/usb/keys
package main
