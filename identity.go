package legacy

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"
)

const redacted = "[redacted]"

var (
	publicShape = regexp.MustCompile(`^age1[a-z0-9]+$`)
	secretShape = regexp.MustCompile(`^AGE-SECRET-KEY-[A-Z0-9]+$`)
)

// PublicIdentity is an opaque public key token such as "age1qyqs...".
type PublicIdentity string

// ParsePublicIdentity trims s and checks it has the public identity shape.
func ParsePublicIdentity(s string) (PublicIdentity, error) {
	s = strings.TrimSpace(s)
	if !publicShape.MatchString(s) {
		return "", Errorf(UnexpectedOutputShape, "%q is not a public identity", s)
	}
	return PublicIdentity(s), nil
}

// Valid reports whether id has the public identity shape.
func (id PublicIdentity) Valid() bool { return publicShape.MatchString(string(id)) }

// Secret is a secret key token. It formats as a placeholder under every fmt
// verb and logger; Reveal is the only way to get at the material.
type Secret struct {
	value string
}

// ParseSecret checks s has the secret material shape.
func ParseSecret(s string) (Secret, error) {
	if !secretShape.MatchString(s) {
		return Secret{}, &Error{Code: InvalidFormat, Detail: "expected AGE-SECRET-KEY-..."}
	}
	return Secret{value: s}, nil
}

// Reveal returns the raw secret material. Callers must not log the result.
func (s Secret) Reveal() string { return s.value }

// IsZero reports whether s holds no material.
func (s Secret) IsZero() bool { return s.value == "" }

// Equal reports whether s and o hold the same material.
func (s Secret) Equal(o Secret) bool { return s.value == o.value }

// Fingerprint is a one-way digest of the material, usable as a map key.
func (s Secret) Fingerprint() [sha256.Size]byte {
	return sha256.Sum256([]byte(s.value))
}

func (s Secret) String() string   { return redacted }
func (s Secret) GoString() string { return "legacy.Secret{" + redacted + "}" }

// Format keeps the placeholder for verbs fmt would otherwise apply to the
// underlying struct.
func (s Secret) Format(f fmt.State, _ rune) { _, _ = f.Write([]byte(redacted)) }

// MaxSecretFileSize bounds how much of a candidate key file is read.
const MaxSecretFileSize = 64 << 10

// ExtractSecret finds the secret line in the content of a key file. Any
// other content, such as the "# public key:" comment written by the keypair
// tool, is ignored. Two different secret lines make the file ambiguous.
func ExtractSecret(content []byte) (Secret, error) {
	var found string
	sc := bufio.NewScanner(bytes.NewReader(content))
	sc.Buffer(make([]byte, 0, 4096), MaxSecretFileSize)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if !secretShape.MatchString(line) {
			continue
		}
		if found != "" && found != line {
			return Secret{}, &Error{Code: InvalidFormat, Detail: "file holds more than one secret key"}
		}
		found = line
	}
	if err := sc.Err(); err != nil {
		return Secret{}, &Error{Code: InvalidFormat, Err: err}
	}
	if found == "" {
		return Secret{}, &Error{Code: InvalidFormat, Detail: "expected a line AGE-SECRET-KEY-..."}
	}
	return Secret{value: found}, nil
}

// Keypair is a freshly generated identity. Material is the keypair tool's
// full output and is what gets written to the key file handed to a holder.
type Keypair struct {
	Public   PublicIdentity
	Secret   Secret
	Material []byte
}

// Recipient is the threshold recipient string derived from a policy.
type Recipient string

// CombinedIdentity refers to a threshold identity materialised as a file
// inside a session's working directory.
type CombinedIdentity struct {
	Path string
}
