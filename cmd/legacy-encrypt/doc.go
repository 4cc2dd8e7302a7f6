// legacy-encrypt encrypts a file so that it can only be opened when a chosen
// number of key holders bring their key files together.
//
// Usage:
// legacy-encrypt [flags]
//
// The program is interactive. It asks for the file to encrypt, then either
// generates new key files (up to 10, with a threshold between 1 and the number
// of keys) or reuses the key configuration already in <home>/encrypted. The
// encrypted file is written to <home>/encrypted next to 'recipients.yaml';
// generated key files go to <home>/age-keys-DISTRIBUTE-AND-DELETE and should be
// handed out and deleted.
//
// Flags are shared with legacy-decrypt; see its documentation. The files to
// encrypt are listed from --output-dir and new key files are written to
// --generated-keys-dir.
//
// Example:
// Encrypt a will, creating three keys of which any two open it:
//
// > legacy-encrypt
// ...
// How many key files would you like to generate? (1-10): 3
// How many keys should be required to decrypt? (1-3): 2
package main
