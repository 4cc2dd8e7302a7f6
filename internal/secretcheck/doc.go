// Package secretcheck holds a static check over the module: the raw value of
// a legacy.Secret may only be read in the packages that hand it to a tool.
// Everywhere else a secret is carried around opaquely and formats as
// [redacted].
//
// The package has no code of its own; the check runs as its test.
package secretcheck
