// Package agetest is an in-process stand-in for the age, age-keygen and
// age-plugin-sss binaries. Keys are real X25519 keys and file keys are split
// with Shamir's scheme over GF(2^16), so a threshold file really needs a
// quorum of shares to open. The formats are its own and only agetest can read
// what agetest writes.
package agetest

import (
	"bufio"
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/wbrc/legacy"
)

const (
	secretPrefix    = "AGE-SECRET-KEY-1"
	publicPrefix    = "age1"
	recipientPrefix = "age1sss1"
	identityPrefix  = "AGE-PLUGIN-SSS-1"

	headerMagic = "legacy-agetest/v1"
	stanzaTag   = "->"
	bodyMarker  = "---"
	wrapInfo    = "legacy-agetest share wrap"
)

// Op names one toolchain operation.
type Op string

const (
	OpDerive    Op = "derive"
	OpGenerate  Op = "generate"
	OpCombine   Op = "combine"
	OpRecipient Op = "recipient"
	OpEncrypt   Op = "encrypt"
	OpDecrypt   Op = "decrypt"
)

// Toolchain implements legacy.Toolchain in process.
type Toolchain struct {
	// WorkDir receives combined identity files.
	WorkDir string
	// Rand defaults to crypto/rand.Reader.
	Rand io.Reader

	mu    sync.Mutex
	fail  map[Op]error
	calls map[Op]int
}

var _ legacy.Toolchain = (*Toolchain)(nil)

// New returns a Toolchain writing intermediate files to workDir.
func New(workDir string) *Toolchain {
	return &Toolchain{WorkDir: workDir}
}

// FailOn makes every later call of op return err.
func (t *Toolchain) FailOn(op Op, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail == nil {
		t.fail = make(map[Op]error)
	}
	t.fail[op] = err
}

// Calls reports how often op ran.
func (t *Toolchain) Calls(op Op) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[op]
}

func (t *Toolchain) enter(ctx context.Context, op Op) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.calls == nil {
		t.calls = make(map[Op]int)
	}
	t.calls[op]++
	if err := ctx.Err(); err != nil {
		return legacy.Cancelled(err)
	}
	return t.fail[op]
}

func (t *Toolchain) random() io.Reader {
	if t.Rand != nil {
		return t.Rand
	}
	return rand.Reader
}

func encodeSecret(scalar []byte) string {
	return secretPrefix + strings.ToUpper(hex.EncodeToString(scalar))
}

func decodeSecret(s string) ([]byte, error) {
	raw, ok := strings.CutPrefix(s, secretPrefix)
	if !ok {
		return nil, errors.New("missing prefix")
	}
	scalar, err := hex.DecodeString(strings.ToLower(raw))
	if err != nil || len(scalar) != curve25519.ScalarSize {
		return nil, errors.New("bad scalar")
	}
	return scalar, nil
}

func publicOf(scalar []byte) ([]byte, error) {
	return curve25519.X25519(scalar, curve25519.Basepoint)
}

func encodePublic(point []byte) legacy.PublicIdentity {
	return legacy.PublicIdentity(publicPrefix + hex.EncodeToString(point))
}

func decodePublic(id legacy.PublicIdentity) ([]byte, error) {
	raw, ok := strings.CutPrefix(string(id), publicPrefix)
	if !ok {
		return nil, fmt.Errorf("%q is not a public key", id)
	}
	point, err := hex.DecodeString(raw)
	if err != nil || len(point) != curve25519.PointSize {
		return nil, fmt.Errorf("%q is not an agetest public key", id)
	}
	return point, nil
}

// NewKeypair generates a key without going through the Toolchain interface.
func NewKeypair(random io.Reader) (legacy.Secret, legacy.PublicIdentity, error) {
	if random == nil {
		random = rand.Reader
	}
	scalar := make([]byte, curve25519.ScalarSize)
	if _, err := io.ReadFull(random, scalar); err != nil {
		return legacy.Secret{}, "", err
	}
	point, err := publicOf(scalar)
	if err != nil {
		return legacy.Secret{}, "", err
	}
	secret, err := legacy.ParseSecret(encodeSecret(scalar))
	if err != nil {
		return legacy.Secret{}, "", err
	}
	return secret, encodePublic(point), nil
}

// KeyFile renders a key file the way age-keygen prints one.
func KeyFile(secret legacy.Secret, public legacy.PublicIdentity) []byte {
	return []byte(fmt.Sprintf("# created: %s\n# public key: %s\n%s\n",
		time.Now().UTC().Format(time.RFC3339), public, secret.Reveal()))
}

func (t *Toolchain) DerivePublic(ctx context.Context, secret legacy.Secret) (legacy.PublicIdentity, error) {
	if err := t.enter(ctx, OpDerive); err != nil {
		return "", err
	}
	scalar, err := decodeSecret(secret.Reveal())
	if err != nil {
		return "", legacy.Errorf(legacy.MalformedSecret, "could not derive a valid public key from the secret, it may have been altered")
	}
	point, err := publicOf(scalar)
	if err != nil {
		return "", legacy.Errorf(legacy.MalformedSecret, "could not derive a valid public key from the secret, it may have been altered")
	}
	return encodePublic(point), nil
}

func (t *Toolchain) GenerateKeypair(ctx context.Context) (legacy.Keypair, error) {
	if err := t.enter(ctx, OpGenerate); err != nil {
		return legacy.Keypair{}, err
	}
	secret, public, err := NewKeypair(t.random())
	if err != nil {
		return legacy.Keypair{}, &legacy.Error{Code: legacy.ToolError, Err: err}
	}
	return legacy.Keypair{Public: public, Secret: secret, Material: KeyFile(secret, public)}, nil
}

func (t *Toolchain) CombineIdentities(ctx context.Context, secrets []legacy.Secret) (legacy.CombinedIdentity, error) {
	if err := t.enter(ctx, OpCombine); err != nil {
		return legacy.CombinedIdentity{}, err
	}
	var buf bytes.Buffer
	for i, s := range secrets {
		scalar, err := decodeSecret(s.Reveal())
		if err != nil {
			return legacy.CombinedIdentity{}, legacy.Errorf(legacy.CombinationFailed, "identity %d: %v", i+1, err)
		}
		buf.Write(scalar)
	}

	path := filepath.Join(t.WorkDir, "combined-identity.txt")
	content := identityPrefix + strings.ToUpper(hex.EncodeToString(buf.Bytes())) + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return legacy.CombinedIdentity{}, err
	}
	return legacy.CombinedIdentity{Path: path}, nil
}

func readIdentity(path string) ([][]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw, ok := strings.CutPrefix(strings.TrimSpace(string(data)), identityPrefix)
	if !ok {
		return nil, errors.New("not a combined identity")
	}
	all, err := hex.DecodeString(strings.ToLower(raw))
	if err != nil || len(all)%curve25519.ScalarSize != 0 {
		return nil, errors.New("corrupt combined identity")
	}
	var scalars [][]byte
	for len(all) > 0 {
		scalars = append(scalars, all[:curve25519.ScalarSize])
		all = all[curve25519.ScalarSize:]
	}
	return scalars, nil
}

// recipient is the decoded form of an age1sss1 recipient.
type recipient struct {
	threshold int
	keys      [][]byte
}

func (r recipient) String() string {
	b := []byte{byte(r.threshold), byte(len(r.keys))}
	for _, k := range r.keys {
		b = append(b, k...)
	}
	return recipientPrefix + hex.EncodeToString(b)
}

func parseRecipient(s legacy.Recipient) (recipient, error) {
	raw, ok := strings.CutPrefix(string(s), recipientPrefix)
	if !ok {
		return recipient{}, errors.New("not a threshold recipient")
	}
	b, err := hex.DecodeString(raw)
	if err != nil || len(b) < 2 {
		return recipient{}, errors.New("corrupt threshold recipient")
	}
	r := recipient{threshold: int(b[0])}
	n, b := int(b[1]), b[2:]
	if len(b) != n*curve25519.PointSize || r.threshold < 1 || r.threshold > n {
		return recipient{}, errors.New("corrupt threshold recipient")
	}
	for i := 0; i < n; i++ {
		r.keys = append(r.keys, b[i*curve25519.PointSize:(i+1)*curve25519.PointSize])
	}
	return r, nil
}

func (t *Toolchain) DeriveRecipient(ctx context.Context, policyPath string) (legacy.Recipient, error) {
	if err := t.enter(ctx, OpRecipient); err != nil {
		return "", err
	}
	policy, err := legacy.ReadPolicy(policyPath)
	if err != nil {
		return "", &legacy.Error{Code: legacy.RecipientGenerationFailed, Err: err}
	}
	r := recipient{threshold: policy.Threshold}
	for _, id := range policy.Identities {
		point, err := decodePublic(id)
		if err != nil {
			return "", &legacy.Error{Code: legacy.RecipientGenerationFailed, Err: err}
		}
		r.keys = append(r.keys, point)
	}
	return legacy.Recipient(r.String()), nil
}

func wrapKey(shared, ephemeral, public []byte) ([]byte, error) {
	salt := append(append([]byte{}, ephemeral...), public...)
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, salt, []byte(wrapInfo)), key); err != nil {
		return nil, err
	}
	return key, nil
}

func (t *Toolchain) Encrypt(ctx context.Context, to legacy.Recipient, in, out string) error {
	if err := t.enter(ctx, OpEncrypt); err != nil {
		return err
	}
	r, err := parseRecipient(to)
	if err != nil {
		return &legacy.Error{Code: legacy.CipherToolError, Err: err}
	}
	plaintext, err := os.ReadFile(in)
	if err != nil {
		return &legacy.Error{Code: legacy.CipherToolError, Err: err}
	}

	fileKey := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(t.random(), fileKey); err != nil {
		return err
	}
	shares, err := splitKey(t.random(), r.threshold, len(r.keys), fileKey)
	if err != nil {
		return &legacy.Error{Code: legacy.CipherToolError, Err: err}
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %d\n", headerMagic, r.threshold)
	for i, pub := range r.keys {
		eph := make([]byte, curve25519.ScalarSize)
		if _, err := io.ReadFull(t.random(), eph); err != nil {
			return err
		}
		ephPub, err := publicOf(eph)
		if err != nil {
			return err
		}
		shared, err := curve25519.X25519(eph, pub)
		if err != nil {
			return &legacy.Error{Code: legacy.CipherToolError, Err: err}
		}
		key, err := wrapKey(shared, ephPub, pub)
		if err != nil {
			return err
		}
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return err
		}
		wrapped := aead.Seal(nil, make([]byte, aead.NonceSize()), shares[i].bytes(), nil)
		fmt.Fprintf(&buf, "%s %x %x\n", stanzaTag, ephPub, wrapped)
	}
	fmt.Fprintln(&buf, bodyMarker)

	aead, err := chacha20poly1305.New(fileKey)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(t.random(), nonce); err != nil {
		return err
	}
	buf.Write(nonce)
	buf.Write(aead.Seal(nil, nonce, plaintext, []byte(headerMagic)))

	return os.WriteFile(out, buf.Bytes(), 0o600)
}

type header struct {
	threshold int
	stanzas   [][2][]byte
	body      []byte
}

func parseHeader(data []byte) (header, error) {
	rd := bufio.NewReader(bytes.NewReader(data))
	first, err := rd.ReadString('\n')
	if err != nil {
		return header{}, errors.New("truncated header")
	}
	magic, thr, ok := strings.Cut(strings.TrimSpace(first), " ")
	if !ok || magic != headerMagic {
		return header{}, errors.New("not an agetest file")
	}
	var h header
	if h.threshold, err = strconv.Atoi(thr); err != nil {
		return header{}, errors.New("bad threshold in header")
	}
	consumed := len(first)
	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			return header{}, errors.New("truncated header")
		}
		consumed += len(line)
		line = strings.TrimSpace(line)
		if line == bodyMarker {
			break
		}
		fields := strings.Fields(line)
		if len(fields) != 3 || fields[0] != stanzaTag {
			return header{}, errors.New("malformed stanza")
		}
		eph, err1 := hex.DecodeString(fields[1])
		wrapped, err2 := hex.DecodeString(fields[2])
		if err1 != nil || err2 != nil {
			return header{}, errors.New("malformed stanza")
		}
		h.stanzas = append(h.stanzas, [2][]byte{eph, wrapped})
	}
	h.body = data[consumed:]
	return h, nil
}

func (t *Toolchain) Decrypt(ctx context.Context, identity legacy.CombinedIdentity, in, out string) error {
	if err := t.enter(ctx, OpDecrypt); err != nil {
		return err
	}
	scalars, err := readIdentity(identity.Path)
	if err != nil {
		return &legacy.Error{Code: legacy.CipherToolError, Err: err}
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return &legacy.Error{Code: legacy.CipherToolError, Err: err}
	}
	h, err := parseHeader(data)
	if err != nil {
		return &legacy.Error{Code: legacy.CipherToolError, Detail: "header is corrupt", Err: err}
	}

	var shares []share
	for _, st := range h.stanzas {
		if s, ok := unwrap(scalars, st[0], st[1]); ok {
			shares = append(shares, s)
		}
	}
	if len(shares) < h.threshold {
		return legacy.Errorf(legacy.NoMatchingIdentity, "no identity matched any of the recipients")
	}
	fileKey, err := combineKey(shares)
	if err != nil {
		return legacy.Errorf(legacy.NoMatchingIdentity, "no identity matched any of the recipients")
	}

	aead, err := chacha20poly1305.New(fileKey)
	if err != nil {
		return err
	}
	if len(h.body) < aead.NonceSize() {
		return &legacy.Error{Code: legacy.CipherToolError, Detail: "truncated payload"}
	}
	nonce, sealed := h.body[:aead.NonceSize()], h.body[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, []byte(headerMagic))
	if err != nil {
		return &legacy.Error{Code: legacy.CipherToolError, Detail: "payload authentication failed"}
	}
	return os.WriteFile(out, plaintext, 0o600)
}

// unwrap tries every identity scalar against one stanza.
func unwrap(scalars [][]byte, ephPub, wrapped []byte) (share, bool) {
	for _, scalar := range scalars {
		pub, err := publicOf(scalar)
		if err != nil {
			continue
		}
		shared, err := curve25519.X25519(scalar, ephPub)
		if err != nil {
			continue
		}
		key, err := wrapKey(shared, ephPub, pub)
		if err != nil {
			continue
		}
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			continue
		}
		plain, err := aead.Open(nil, make([]byte, aead.NonceSize()), wrapped, nil)
		if err != nil {
			continue
		}
		s, err := parseShare(plain)
		if err != nil {
			continue
		}
		return s, true
	}
	return share{}, false
}
