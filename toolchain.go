package legacy

import "context"

//go:generate mockgen -package=legacymock -destination=legacymock/toolchain.go . Deriver,KeyGenerator,Combiner,RecipientDeriver,Cipher,Toolchain

// Deriver derives the public identity bound to a secret.
type Deriver interface {
	DerivePublic(ctx context.Context, secret Secret) (PublicIdentity, error)
}

// KeyGenerator creates fresh identities.
type KeyGenerator interface {
	GenerateKeypair(ctx context.Context) (Keypair, error)
}

// Combiner turns a quorum of secrets into one threshold identity.
type Combiner interface {
	CombineIdentities(ctx context.Context, secrets []Secret) (CombinedIdentity, error)
}

// RecipientDeriver turns a saved policy artifact into a threshold recipient.
type RecipientDeriver interface {
	DeriveRecipient(ctx context.Context, policyPath string) (Recipient, error)
}

// Cipher runs the encryption primitive. Implementations write exactly to
// out and report NoMatchingIdentity when decryption finds no usable share.
type Cipher interface {
	Encrypt(ctx context.Context, recipient Recipient, in, out string) error
	Decrypt(ctx context.Context, identity CombinedIdentity, in, out string) error
}

// Toolchain is everything a session needs from the external tools.
type Toolchain interface {
	Deriver
	KeyGenerator
	Combiner
	RecipientDeriver
	Cipher
}
