package agetest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wbrc/legacy"
)

type keypair struct {
	secret legacy.Secret
	public legacy.PublicIdentity
}

func newKeys(t *testing.T, n int) []keypair {
	t.Helper()
	keys := make([]keypair, n)
	for i := range keys {
		s, p, err := NewKeypair(nil)
		require.NoError(t, err)
		keys[i] = keypair{s, p}
	}
	return keys
}

func sealFile(t *testing.T, tc *Toolchain, threshold int, keys []keypair, plaintext string) string {
	t.Helper()
	dir := t.TempDir()
	policy := &legacy.RecipientPolicy{Threshold: threshold}
	for _, k := range keys {
		policy.Identities = append(policy.Identities, k.public)
	}
	policyPath := filepath.Join(dir, legacy.DefaultPolicyName)
	require.NoError(t, legacy.SavePolicy(policy, policyPath, false))

	r, err := tc.DeriveRecipient(context.Background(), policyPath)
	require.NoError(t, err)

	in := filepath.Join(dir, "will.txt")
	require.NoError(t, os.WriteFile(in, []byte(plaintext), 0o600))
	out := in + ".age"
	require.NoError(t, tc.Encrypt(context.Background(), r, in, out))
	return out
}

func TestDerivePublicMatchesGenerated(t *testing.T) {
	tc := New(t.TempDir())
	ctx := context.Background()

	kp, err := tc.GenerateKeypair(ctx)
	require.NoError(t, err)
	require.True(t, kp.Public.Valid())

	got, err := tc.DerivePublic(ctx, kp.Secret)
	require.NoError(t, err)
	require.Equal(t, kp.Public, got)

	extracted, err := legacy.ExtractSecret(kp.Material)
	require.NoError(t, err)
	require.True(t, extracted.Equal(kp.Secret))

	short, err := legacy.ParseSecret("AGE-SECRET-KEY-1ABCDEF")
	require.NoError(t, err)
	_, err = tc.DerivePublic(ctx, short)
	require.ErrorIs(t, err, legacy.ErrMalformedSecret)

	require.Equal(t, 2, tc.Calls(OpDerive))
}

func TestThresholdRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		threshold int
		total     int
		use       []int
		wantErr   error
	}{
		{name: "1-of-1", threshold: 1, total: 1, use: []int{0}},
		{name: "2-of-3 first two", threshold: 2, total: 3, use: []int{0, 1}},
		{name: "2-of-3 last two reversed", threshold: 2, total: 3, use: []int{2, 1}},
		{name: "3-of-5 all", threshold: 3, total: 5, use: []int{0, 1, 2, 3, 4}},
		{name: "2-of-3 one key", threshold: 2, total: 3, use: []int{1}, wantErr: legacy.ErrNoMatchingIdentity},
		{name: "2-of-3 same key twice", threshold: 2, total: 3, use: []int{1, 1}, wantErr: legacy.ErrNoMatchingIdentity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			work := t.TempDir()
			tc := New(work)
			ctx := context.Background()

			keys := newKeys(t, tt.total)
			sealed := sealFile(t, tc, tt.threshold, keys, "my last will\n")

			var secrets []legacy.Secret
			for _, i := range tt.use {
				secrets = append(secrets, keys[i].secret)
			}
			id, err := tc.CombineIdentities(ctx, secrets)
			require.NoError(t, err)
			require.Equal(t, work, filepath.Dir(id.Path))

			out := filepath.Join(t.TempDir(), "opened.txt")
			err = tc.Decrypt(ctx, id, sealed, out)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				_, statErr := os.Stat(out)
				require.True(t, os.IsNotExist(statErr))
				return
			}
			require.NoError(t, err)
			data, err := os.ReadFile(out)
			require.NoError(t, err)
			require.Equal(t, "my last will\n", string(data))
		})
	}
}

func TestForeignKeysDoNotCount(t *testing.T) {
	tc := New(t.TempDir())
	ctx := context.Background()

	keys := newKeys(t, 3)
	outsiders := newKeys(t, 2)
	sealed := sealFile(t, tc, 2, keys, "x")

	id, err := tc.CombineIdentities(ctx, []legacy.Secret{keys[0].secret, outsiders[0].secret, outsiders[1].secret})
	require.NoError(t, err)
	err = tc.Decrypt(ctx, id, sealed, filepath.Join(t.TempDir(), "out"))
	require.ErrorIs(t, err, legacy.ErrNoMatchingIdentity)
}

func TestCorruptInputs(t *testing.T) {
	tc := New(t.TempDir())
	ctx := context.Background()
	dir := t.TempDir()

	keys := newKeys(t, 1)
	id, err := tc.CombineIdentities(ctx, []legacy.Secret{keys[0].secret})
	require.NoError(t, err)

	garbage := filepath.Join(dir, "garbage.age")
	require.NoError(t, os.WriteFile(garbage, []byte("hello"), 0o600))
	err = tc.Decrypt(ctx, id, garbage, filepath.Join(dir, "out"))
	require.ErrorIs(t, err, legacy.ErrCipherToolError)

	err = tc.Encrypt(ctx, "age1notathresholdrecipient", garbage, filepath.Join(dir, "out.age"))
	require.ErrorIs(t, err, legacy.ErrCipherToolError)

	_, err = tc.DeriveRecipient(ctx, filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, legacy.ErrRecipientGenerationFailed)
}

func TestFailOn(t *testing.T) {
	tc := New(t.TempDir())
	boom := errors.New("boom")
	tc.FailOn(OpCombine, boom)

	_, err := tc.CombineIdentities(context.Background(), nil)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, tc.Calls(OpCombine))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tc.GenerateKeypair(ctx)
	require.True(t, legacy.IsCancelled(err))
}
