package legacy_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/wbrc/legacy"
	"github.com/wbrc/legacy/legacymock"
)

const (
	pubA = "age1qyqszqgpqyqszqgpqyqszqgpqyqszqgpqyqszqgpqyqszqgpqyqs3290gq"
	pubB = "age1zvkyg2lqzraa2lnjvqej32nkuu0ues2s82hzrye869xeexvn73equnujwj"
	pubC = "age1xmwwc06ly3ee5rytxm9mflaz2u56jjj36s0mypdrwsvlul66mv4q47ryef"
	pubX = "age1lggyhqrw2nlhcxprm67z43rta597azn8gknawjehu9d9dl0jq3yqqvfafg"

	secretA = "AGE-SECRET-KEY-1AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	secretB = "AGE-SECRET-KEY-1BBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB"
	secretC = "AGE-SECRET-KEY-1CCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCC"
	secretX = "AGE-SECRET-KEY-1XXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX"
)

func threeKeyPolicy(threshold int) *legacy.RecipientPolicy {
	return &legacy.RecipientPolicy{
		Threshold:  threshold,
		Identities: []legacy.PublicIdentity{pubA, pubB, pubC},
	}
}

func writeKeyFile(t *testing.T, dir, name, secret string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := fmt.Sprintf("# created: 2025-01-01T00:00:00Z\n# public key: (elided)\n%s\n", secret)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func mustSecret(t *testing.T, s string) legacy.Secret {
	t.Helper()
	secret, err := legacy.ParseSecret(s)
	require.NoError(t, err)
	return secret
}

// fixedDeriver maps raw secrets to identities without spawning anything.
type fixedDeriver struct {
	ids   map[string]legacy.PublicIdentity
	calls int
}

func (d *fixedDeriver) DerivePublic(_ context.Context, s legacy.Secret) (legacy.PublicIdentity, error) {
	d.calls++
	id, ok := d.ids[s.Reveal()]
	if !ok {
		return "", &legacy.Error{Code: legacy.MalformedSecret, Detail: "key may have been altered"}
	}
	return id, nil
}

func TestCollectorReachesThreshold(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)
	ctx := context.Background()
	dir := t.TempDir()

	d := legacymock.NewMockDeriver(ctrl)
	d.EXPECT().DerivePublic(gomock.Any(), mustSecret(t, secretA)).Return(legacy.PublicIdentity(pubA), nil)
	d.EXPECT().DerivePublic(gomock.Any(), mustSecret(t, secretB)).Return(legacy.PublicIdentity(pubB), nil)

	c, err := legacy.NewCollector(threeKeyPolicy(2), d)
	require.NoError(err)

	require.NoError(c.Submit(ctx, writeKeyFile(t, dir, "a.yaml", secretA)))
	require.False(c.Complete())
	require.Equal(1, c.State().Remaining())

	require.NoError(c.Submit(ctx, writeKeyFile(t, dir, "b.yaml", secretB)))
	require.True(c.Complete())

	got := c.Secrets()
	require.Len(got, 2)
	require.Equal(secretA, got[0].Reveal())
	require.Equal(secretB, got[1].Reveal())
	require.Equal(0, c.State().Remaining())

	err = c.Submit(ctx, writeKeyFile(t, dir, "c.yaml", secretC))
	require.ErrorIs(err, legacy.ErrQuorumSatisfied)
}

func TestCollectorDeclinesForeignKey(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	d := legacymock.NewMockDeriver(ctrl)
	d.EXPECT().DerivePublic(gomock.Any(), mustSecret(t, secretX)).Return(legacy.PublicIdentity(pubX), nil)

	c, err := legacy.NewCollector(threeKeyPolicy(2), d)
	require.NoError(err)

	path := writeKeyFile(t, t.TempDir(), "x.yaml", secretX)
	err = c.Submit(ctx, path)
	require.ErrorIs(err, legacy.ErrNotAuthorizedForThisFile)
	require.Equal(legacy.KindCandidate, legacy.KindOf(err))

	verdict, ok := c.Verdict(path)
	require.True(ok)
	require.Equal(legacy.Declined, verdict)
	require.Empty(c.State().Collected)
}

func TestCollectorRejectsResubmittedPath(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	d := legacymock.NewMockDeriver(ctrl)
	d.EXPECT().DerivePublic(gomock.Any(), gomock.Any()).Return(legacy.PublicIdentity(pubA), nil).Times(1)

	c, err := legacy.NewCollector(threeKeyPolicy(2), d)
	require.NoError(err)

	path := writeKeyFile(t, t.TempDir(), "a.yaml", secretA)
	require.NoError(c.Submit(ctx, path))

	err = c.Submit(ctx, path)
	require.ErrorIs(err, legacy.ErrAlreadyJudged)
	var e *legacy.Error
	require.True(errors.As(err, &e))
	require.Equal(legacy.Accepted, e.Prior)

	require.Len(c.Secrets(), 1)
	require.False(c.Complete())
}

func TestCollectorResubmitDeclined(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()

	d := &fixedDeriver{ids: map[string]legacy.PublicIdentity{secretA: pubA}}
	c, err := legacy.NewCollector(threeKeyPolicy(2), d)
	require.NoError(err)

	bad := filepath.Join(dir, "notes.txt")
	require.NoError(os.WriteFile(bad, []byte("nothing to see here\n"), 0o600))
	require.ErrorIs(c.Submit(ctx, bad), legacy.ErrInvalidFormat)

	// Fixing the content afterwards does not reopen a judged path.
	writeKeyFile(t, dir, "notes.txt", secretA)
	err = c.Submit(ctx, bad)
	require.ErrorIs(err, legacy.ErrAlreadyJudged)
	var e *legacy.Error
	require.True(errors.As(err, &e))
	require.Equal(legacy.Declined, e.Prior)

	require.Empty(c.Secrets())
	require.Zero(d.calls)
}

func TestCollectorPathNormalisation(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()

	d := &fixedDeriver{ids: map[string]legacy.PublicIdentity{secretA: pubA}}
	c, err := legacy.NewCollector(threeKeyPolicy(2), d)
	require.NoError(err)

	path := writeKeyFile(t, dir, "a.yaml", secretA)
	require.NoError(c.Submit(ctx, path))

	indirect := dir + string(filepath.Separator) + "sub" + string(filepath.Separator) + ".." + string(filepath.Separator) + "a.yaml"
	require.ErrorIs(c.Submit(ctx, indirect), legacy.ErrAlreadyJudged)
}

func TestCollectorValidationOrder(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		derive     func(*legacymock.MockDeriver)
		wantErr    error
		wantLedger bool
	}{
		{
			name:       "invalid format never derives",
			content:    "hello\n",
			derive:     func(*legacymock.MockDeriver) {},
			wantErr:    legacy.ErrInvalidFormat,
			wantLedger: true,
		},
		{
			name:    "malformed secret",
			content: secretA + "\n",
			derive: func(d *legacymock.MockDeriver) {
				d.EXPECT().DerivePublic(gomock.Any(), gomock.Any()).Return(legacy.PublicIdentity(""), legacy.ErrMalformedSecret)
			},
			wantErr:    legacy.ErrMalformedSecret,
			wantLedger: true,
		},
		{
			name:    "tool error",
			content: secretA + "\n",
			derive: func(d *legacymock.MockDeriver) {
				d.EXPECT().DerivePublic(gomock.Any(), gomock.Any()).Return(legacy.PublicIdentity(""), legacy.ErrToolError)
			},
			wantErr:    legacy.ErrToolError,
			wantLedger: true,
		},
		{
			name:    "unexpected output shape",
			content: secretA + "\n",
			derive: func(d *legacymock.MockDeriver) {
				d.EXPECT().DerivePublic(gomock.Any(), gomock.Any()).Return(legacy.PublicIdentity("AGE1NOPE"), nil)
			},
			wantErr:    legacy.ErrUnexpectedOutputShape,
			wantLedger: true,
		},
		{
			name:    "timeout is not held against the file",
			content: secretA + "\n",
			derive: func(d *legacymock.MockDeriver) {
				d.EXPECT().DerivePublic(gomock.Any(), gomock.Any()).Return(legacy.PublicIdentity(""), legacy.ErrToolTimeout)
			},
			wantErr: legacy.ErrToolTimeout,
		},
		{
			name:    "not authorized",
			content: secretA + "\n",
			derive: func(d *legacymock.MockDeriver) {
				d.EXPECT().DerivePublic(gomock.Any(), gomock.Any()).Return(legacy.PublicIdentity(pubX), nil)
			},
			wantErr:    legacy.ErrNotAuthorizedForThisFile,
			wantLedger: true,
		},
		{
			name:    "oversized file",
			content:    strings.Repeat("#", legacy.MaxSecretFileSize) + "\n" + secretA + "\n",
			derive:     func(*legacymock.MockDeriver) {},
			wantErr:    legacy.ErrInvalidFormat,
			wantLedger: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			ctrl := gomock.NewController(t)

			d := legacymock.NewMockDeriver(ctrl)
			tt.derive(d)

			c, err := legacy.NewCollector(threeKeyPolicy(1), d)
			require.NoError(err)

			path := filepath.Join(t.TempDir(), "key.yaml")
			require.NoError(os.WriteFile(path, []byte(tt.content), 0o600))

			err = c.Submit(context.Background(), path)
			require.ErrorIs(err, tt.wantErr)

			verdict, ok := c.Verdict(path)
			require.Equal(tt.wantLedger, ok)
			if ok {
				require.Equal(legacy.Declined, verdict)
			}
			require.Empty(c.Secrets())
		})
	}
}

func TestCollectorUnreadableCandidate(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)

	c, err := legacy.NewCollector(threeKeyPolicy(1), legacymock.NewMockDeriver(ctrl))
	require.NoError(err)

	missing := filepath.Join(t.TempDir(), "gone.yaml")
	require.ErrorIs(c.Submit(context.Background(), missing), legacy.ErrCandidateUnavailable)
	_, ok := c.Verdict(missing)
	require.False(ok)

	require.ErrorIs(c.Submit(context.Background(), ""), legacy.ErrCandidateUnavailable)
	require.Empty(c.Ledger())
}

func TestCollectorRepeatedIdentity(t *testing.T) {
	ctx := context.Background()

	for _, allow := range []bool{false, true} {
		t.Run(fmt.Sprintf("allow=%t", allow), func(t *testing.T) {
			require := require.New(t)
			dir := t.TempDir()

			d := &fixedDeriver{ids: map[string]legacy.PublicIdentity{secretA: pubA}}
			c, err := legacy.NewCollector(threeKeyPolicy(2), d, legacy.AllowRepeatedIdentity(allow))
			require.NoError(err)

			require.NoError(c.Submit(ctx, writeKeyFile(t, dir, "a.yaml", secretA)))
			copyPath := writeKeyFile(t, dir, "a-copy.yaml", secretA)
			err = c.Submit(ctx, copyPath)

			// The copy is derived from the cache, not a second spawn.
			require.Equal(1, d.calls)

			if allow {
				require.NoError(err)
				require.True(c.Complete())
				return
			}
			require.ErrorIs(err, legacy.ErrDuplicateIdentity)
			verdict, _ := c.Verdict(copyPath)
			require.Equal(legacy.Declined, verdict)
			require.Len(c.Secrets(), 1)
		})
	}
}

func TestNewCollectorRejectsInvalidPolicy(t *testing.T) {
	_, err := legacy.NewCollector(&legacy.RecipientPolicy{Threshold: 3, Identities: []legacy.PublicIdentity{pubA}}, &fixedDeriver{})
	require.ErrorIs(t, err, legacy.ErrPolicyMalformed)

	_, err = legacy.NewCollector(nil, &fixedDeriver{})
	require.Error(t, err)

	_, err = legacy.NewCollector(threeKeyPolicy(1), nil)
	require.Error(t, err)
}

// TestCollectorThreshold checks every k-of-n: exactly k valid distinct
// candidates complete the quorum, k-1 never do, and rejections alone never do.
func TestCollectorThreshold(t *testing.T) {
	ctx := context.Background()
	for n := 1; n <= 5; n++ {
		for k := 1; k <= n; k++ {
			t.Run(fmt.Sprintf("%d-of-%d", k, n), func(t *testing.T) {
				require := require.New(t)
				dir := t.TempDir()

				policy := &legacy.RecipientPolicy{Threshold: k}
				d := &fixedDeriver{ids: make(map[string]legacy.PublicIdentity)}
				var paths []string
				for i := 0; i < n; i++ {
					secret := fmt.Sprintf("AGE-SECRET-KEY-1K%02dN%02d", i, n)
					id := legacy.PublicIdentity(fmt.Sprintf("age1key%02dof%02d", i, n))
					policy.Identities = append(policy.Identities, id)
					d.ids[secret] = id
					paths = append(paths, writeKeyFile(t, dir, fmt.Sprintf("k%d.yaml", i), secret))
				}
				d.ids[secretX] = pubX

				c, err := legacy.NewCollector(policy, d)
				require.NoError(err)

				for i := 0; i < 3; i++ {
					junk := writeKeyFile(t, dir, fmt.Sprintf("junk%d.yaml", i), secretX)
					require.Error(c.Submit(ctx, junk))
					require.Error(c.Submit(ctx, junk))
				}
				require.False(c.Complete())

				for i := 0; i < k; i++ {
					require.False(c.Complete())
					require.NoError(c.Submit(ctx, paths[i]))
					require.Equal(k-i-1, c.State().Remaining())
				}
				require.True(c.Complete())
				require.Len(c.Secrets(), k)
			})
		}
	}
}

// scriptedSource replays a fixed list of answers; each entry is either a
// path or an error returned from Next.
type scriptedSource struct {
	script   []any
	rejected []error
	accepted []string
	keyNums  []int
}

func (s *scriptedSource) Next(_ context.Context, keyNumber int) (string, error) {
	s.keyNums = append(s.keyNums, keyNumber)
	if len(s.script) == 0 {
		return "", legacy.ErrUserCancelled
	}
	next := s.script[0]
	s.script = s.script[1:]
	if err, ok := next.(error); ok {
		return "", err
	}
	return next.(string), nil
}

func (s *scriptedSource) Rejected(_ context.Context, _ string, err error) error {
	s.rejected = append(s.rejected, err)
	return nil
}

func (s *scriptedSource) Accepted(_ context.Context, path string, _ legacy.QuorumState) error {
	s.accepted = append(s.accepted, filepath.Base(path))
	return nil
}

func TestCollect(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()

	d := &fixedDeriver{ids: map[string]legacy.PublicIdentity{
		secretA: pubA, secretB: pubB, secretC: pubC, secretX: pubX,
	}}
	c, err := legacy.NewCollector(threeKeyPolicy(2), d)
	require.NoError(err)

	a := writeKeyFile(t, dir, "a.yaml", secretA)
	src := &scriptedSource{script: []any{
		errors.New("no key file selected"),
		a,
		a,
		writeKeyFile(t, dir, "x.yaml", secretX),
		writeKeyFile(t, dir, "c.yaml", secretC),
		writeKeyFile(t, dir, "b.yaml", secretB),
	}}

	secrets, err := c.Collect(context.Background(), src)
	require.NoError(err)
	require.Len(secrets, 2)
	require.Equal(secretA, secrets[0].Reveal())
	require.Equal(secretC, secrets[1].Reveal())

	require.Equal([]string{"a.yaml", "c.yaml"}, src.accepted)
	require.Len(src.rejected, 3)
	require.ErrorIs(src.rejected[1], legacy.ErrAlreadyJudged)
	require.ErrorIs(src.rejected[2], legacy.ErrNotAuthorizedForThisFile)
	require.Equal([]int{1, 1, 2, 2, 2}, src.keyNums)
	// b.yaml was never asked for.
	require.Len(src.script, 1)
}

func TestCollectCancellation(t *testing.T) {
	require := require.New(t)

	c, err := legacy.NewCollector(threeKeyPolicy(2), &fixedDeriver{})
	require.NoError(err)

	src := &scriptedSource{}
	_, err = c.Collect(context.Background(), src)
	require.True(legacy.IsCancelled(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Collect(ctx, &scriptedSource{script: []any{"unused"}})
	require.True(legacy.IsCancelled(err))
	require.Empty(c.Ledger())
}

type abortingSource struct{ scriptedSource }

func (s *abortingSource) Rejected(context.Context, string, error) error {
	return legacy.ErrUserCancelled
}

func TestCollectSourceAbort(t *testing.T) {
	c, err := legacy.NewCollector(threeKeyPolicy(1), &fixedDeriver{})
	require.NoError(t, err)

	src := &abortingSource{scriptedSource{script: []any{errors.New("dialog closed")}}}
	_, err = c.Collect(context.Background(), src)
	require.ErrorIs(t, err, legacy.ErrUserCancelled)
}
