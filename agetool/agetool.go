// Package agetool runs the age, age-keygen and age-plugin-sss binaries on
// behalf of the legacy package. Every invocation is synchronous and bounded by
// a timeout.
package agetool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/wbrc/legacy"
	"github.com/wbrc/legacy/internal/logging"
)

// Names of the binaries looked up in the bin directory.
const (
	Age    = "age"
	Keygen = "age-keygen"
	Plugin = "age-plugin-sss"

	// DefaultTimeout bounds a single tool invocation.
	DefaultTimeout = 2 * time.Minute

	// waitDelay bounds how long a killed tool may hold its output pipes.
	waitDelay = 5 * time.Second

	secretsFileName  = "decryption-secrets.yaml"
	identityFileName = "combined-identity.txt"
)

var publicComment = regexp.MustCompile(`(?m)^# public key: (age1[a-z0-9]+)\s*$`)

// stderr fragments the tools print for conditions we report with their own
// codes.
var (
	malformedSecretSignatures = []string{"malformed secret key", "failed to parse"}
	noMatchSignature          = "no identity matched any of the recipients"
)

// BinaryName returns the platform file name of a tool.
func BinaryName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

// Option configures a Toolchain.
type Option func(*Toolchain)

// WithTimeout bounds every tool invocation. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(t *Toolchain) { t.timeout = d }
}

// WithLogger sets the toolchain's logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Toolchain) { t.log = l }
}

// Toolchain implements legacy.Toolchain with the age binaries found in one
// directory. Intermediate files are written to workDir, which the caller owns.
type Toolchain struct {
	binDir  string
	workDir string
	env     []string
	timeout time.Duration
	log     *zap.Logger
}

var _ legacy.Toolchain = (*Toolchain)(nil)

// New locates the three binaries in binDir. Every missing binary is reported
// in a single ToolMissing error.
func New(binDir, workDir string, opts ...Option) (*Toolchain, error) {
	var missing []string
	for _, name := range []string{Age, Keygen, Plugin} {
		info, err := os.Stat(filepath.Join(binDir, BinaryName(name)))
		if err != nil || info.IsDir() {
			missing = append(missing, BinaryName(name))
		}
	}
	if len(missing) > 0 {
		return nil, legacy.Errorf(legacy.ToolMissing, "missing required files in %s: %s", binDir, strings.Join(missing, ", "))
	}

	t := &Toolchain{
		binDir:  binDir,
		workDir: workDir,
		env:     toolEnv(binDir),
		timeout: DefaultTimeout,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// toolEnv is the process environment with binDir first on PATH, so age can
// find its plugin.
func toolEnv(binDir string) []string {
	env := os.Environ()
	path := binDir
	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.EqualFold(k, "PATH") {
			path = binDir + string(os.PathListSeparator) + v
			continue
		}
		out = append(out, kv)
	}
	return append(out, "PATH="+path)
}

type output struct {
	stdout []byte
	stderr string
}

// run executes one tool and waits for it. A nil error means exit status 0.
// Timeouts and cancellation are mapped to ToolTimeout and UserCancelled; any
// other failure is returned as is, with the captured output for
// classification.
func (t *Toolchain) run(ctx context.Context, stdin []byte, name string, args ...string) (output, error) {
	runCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, filepath.Join(t.binDir, BinaryName(name)), args...)
	cmd.Env = t.env
	cmd.Dir = t.workDir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	start := time.Now()
	err := cmd.Run()
	out := output{stdout: stdout.Bytes(), stderr: stderr.String()}
	fields := []zap.Field{
		zap.String("tool", name),
		zap.Duration("took", time.Since(start)),
		zap.Bool("ok", err == nil),
	}
	if stdin != nil {
		fields = append(fields, logging.Redacted("stdin"))
	}
	t.log.Debug("tool finished", fields...)

	switch {
	case err == nil:
		return out, nil
	case ctx.Err() != nil:
		return out, legacy.Cancelled(ctx.Err())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return out, legacy.Errorf(legacy.ToolTimeout, "%s did not finish within %s", name, t.timeout)
	}
	return out, fmt.Errorf("%s failed: %w", name, err)
}

func passThrough(err error) bool {
	return legacy.IsCancelled(err) || legacy.CodeOf(err) == legacy.ToolTimeout
}

// stderrDetail trims tool diagnostics for error messages.
func stderrDetail(stderr string) string {
	return strings.TrimSpace(stderr)
}

// DerivePublic runs age-keygen -y with the secret on standard input.
func (t *Toolchain) DerivePublic(ctx context.Context, secret legacy.Secret) (legacy.PublicIdentity, error) {
	out, err := t.run(ctx, []byte(secret.Reveal()+"\n"), Keygen, "-y")
	for _, sig := range malformedSecretSignatures {
		if strings.Contains(out.stderr, sig) {
			return "", legacy.Errorf(legacy.MalformedSecret, "could not derive a valid public key from the secret, it may have been altered")
		}
	}
	if err != nil {
		if passThrough(err) {
			return "", err
		}
		return "", &legacy.Error{Code: legacy.ToolError, Detail: "error validating secret key", Err: err}
	}
	return legacy.ParsePublicIdentity(string(out.stdout))
}

// GenerateKeypair runs age-keygen and keeps its full output as the key file
// content.
func (t *Toolchain) GenerateKeypair(ctx context.Context) (legacy.Keypair, error) {
	out, err := t.run(ctx, nil, Keygen)
	if err != nil {
		if passThrough(err) {
			return legacy.Keypair{}, err
		}
		return legacy.Keypair{}, &legacy.Error{Code: legacy.ToolError, Detail: "error generating key: " + stderrDetail(out.stderr), Err: err}
	}

	m := publicComment.FindSubmatch(out.stdout)
	if m == nil {
		return legacy.Keypair{}, legacy.Errorf(legacy.UnexpectedOutputShape, "could not extract public key")
	}
	secret, err := legacy.ExtractSecret(out.stdout)
	if err != nil {
		return legacy.Keypair{}, legacy.Errorf(legacy.UnexpectedOutputShape, "could not extract secret key")
	}
	return legacy.Keypair{
		Public:   legacy.PublicIdentity(m[1]),
		Secret:   secret,
		Material: out.stdout,
	}, nil
}

type identitiesFile struct {
	Identities []string `yaml:"identities"`
}

// CombineIdentities hands the secrets to age-plugin-sss --generate-identity
// and stores the combined identity in the working directory. The secrets file
// is scrubbed before returning.
func (t *Toolchain) CombineIdentities(ctx context.Context, secrets []legacy.Secret) (legacy.CombinedIdentity, error) {
	doc := identitiesFile{Identities: make([]string, len(secrets))}
	for i, s := range secrets {
		doc.Identities[i] = s.Reveal()
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return legacy.CombinedIdentity{}, fmt.Errorf("failed to encode identities: %w", err)
	}

	secretsPath := filepath.Join(t.workDir, secretsFileName)
	if err := renameio.WriteFile(secretsPath, data, 0o600); err != nil {
		return legacy.CombinedIdentity{}, fmt.Errorf("failed to write identities: %w", err)
	}
	defer t.scrub(secretsPath, len(data))
	t.log.Debug("combining identities", zap.Int("count", len(secrets)), logging.Redacted("identities"))

	out, err := t.run(ctx, nil, Plugin, "--generate-identity", secretsPath)
	if err != nil {
		if passThrough(err) {
			return legacy.CombinedIdentity{}, err
		}
		return legacy.CombinedIdentity{}, &legacy.Error{Code: legacy.CombinationFailed, Detail: "error generating combined identity", Err: err}
	}
	if len(bytes.TrimSpace(out.stdout)) == 0 {
		return legacy.CombinedIdentity{}, legacy.Errorf(legacy.CombinationFailed, "failed to generate combined identity from keys")
	}

	identityPath := filepath.Join(t.workDir, identityFileName)
	if err := renameio.WriteFile(identityPath, out.stdout, 0o600); err != nil {
		return legacy.CombinedIdentity{}, fmt.Errorf("failed to write combined identity: %w", err)
	}
	return legacy.CombinedIdentity{Path: identityPath}, nil
}

// scrub overwrites path with zeros before removing it.
func (t *Toolchain) scrub(path string, size int) {
	if err := os.WriteFile(path, make([]byte, size), 0o600); err != nil {
		t.log.Warn("failed to overwrite secrets file", zap.Error(err))
	}
	if err := os.Remove(path); err != nil {
		t.log.Warn("failed to remove secrets file", zap.Error(err))
	}
}

// DeriveRecipient runs age-plugin-sss --generate-recipient on the policy.
func (t *Toolchain) DeriveRecipient(ctx context.Context, policyPath string) (legacy.Recipient, error) {
	out, err := t.run(ctx, nil, Plugin, "--generate-recipient", policyPath)
	if err != nil {
		if passThrough(err) {
			return "", err
		}
		return "", &legacy.Error{Code: legacy.RecipientGenerationFailed, Detail: stderrDetail(out.stderr), Err: err}
	}
	return legacy.Recipient(strings.TrimSpace(string(out.stdout))), nil
}

// Encrypt runs age -e.
func (t *Toolchain) Encrypt(ctx context.Context, recipient legacy.Recipient, in, out string) error {
	res, err := t.run(ctx, nil, Age, "-e", "-r", string(recipient), "-o", out, in)
	if err != nil {
		if passThrough(err) {
			return err
		}
		return &legacy.Error{Code: legacy.CipherToolError, Detail: "encryption failed: " + stderrDetail(res.stderr), Err: err}
	}
	return nil
}

// Decrypt runs age -d with the combined identity.
func (t *Toolchain) Decrypt(ctx context.Context, identity legacy.CombinedIdentity, in, out string) error {
	res, err := t.run(ctx, nil, Age, "-d", "-i", identity.Path, "-o", out, in)
	if strings.Contains(res.stderr, noMatchSignature) {
		return legacy.Errorf(legacy.NoMatchingIdentity, "no valid identity was found to decrypt the file, please ensure you have the correct key files")
	}
	if err != nil {
		if passThrough(err) {
			return err
		}
		return &legacy.Error{Code: legacy.CipherToolError, Detail: "decryption failed: " + stderrDetail(res.stderr), Err: err}
	}
	return nil
}
