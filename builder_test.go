package legacy_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/wbrc/legacy"
	"github.com/wbrc/legacy/legacymock"
)

func TestCombine(t *testing.T) {
	ctx := context.Background()
	a, b := mustSecret(t, secretA), mustSecret(t, secretB)

	t.Run("passes secrets in collection order", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		c := legacymock.NewMockCombiner(ctrl)
		c.EXPECT().CombineIdentities(gomock.Any(), []legacy.Secret{b, a}).
			Return(legacy.CombinedIdentity{Path: "/tmp/combined.txt"}, nil)

		id, err := legacy.Combine(ctx, c, []legacy.Secret{b, a})
		require.NoError(t, err)
		require.Equal(t, "/tmp/combined.txt", id.Path)
	})

	t.Run("nothing collected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		_, err := legacy.Combine(ctx, legacymock.NewMockCombiner(ctrl), nil)
		require.ErrorIs(t, err, legacy.ErrCombinationFailed)
	})

	t.Run("empty identity", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		c := legacymock.NewMockCombiner(ctrl)
		c.EXPECT().CombineIdentities(gomock.Any(), gomock.Any()).Return(legacy.CombinedIdentity{}, nil)

		_, err := legacy.Combine(ctx, c, []legacy.Secret{a})
		require.ErrorIs(t, err, legacy.ErrCombinationFailed)
	})

	t.Run("foreign error is filed as combination failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		c := legacymock.NewMockCombiner(ctrl)
		boom := errors.New("exit status 1")
		c.EXPECT().CombineIdentities(gomock.Any(), gomock.Any()).Return(legacy.CombinedIdentity{}, boom)

		_, err := legacy.Combine(ctx, c, []legacy.Secret{a})
		require.ErrorIs(t, err, legacy.ErrCombinationFailed)
		require.ErrorIs(t, err, boom)
		require.Equal(t, legacy.KindTool, legacy.KindOf(err))
	})

	t.Run("timeout keeps its code", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		c := legacymock.NewMockCombiner(ctrl)
		c.EXPECT().CombineIdentities(gomock.Any(), gomock.Any()).Return(legacy.CombinedIdentity{}, legacy.ErrToolTimeout)

		_, err := legacy.Combine(ctx, c, []legacy.Secret{a})
		require.ErrorIs(t, err, legacy.ErrToolTimeout)
	})
}

func TestDeriveRecipient(t *testing.T) {
	ctx := context.Background()
	policyPath := filepath.Join(t.TempDir(), legacy.DefaultPolicyName)
	require.NoError(t, os.WriteFile(policyPath, []byte("threshold: 1\nshares:\n  - "+pubA+"\n"), 0o600))

	tests := []struct {
		name    string
		path    string
		ret     legacy.Recipient
		retErr  error
		calls   int
		want    legacy.Recipient
		wantErr error
	}{
		{
			name:  "trimmed",
			path:  policyPath,
			ret:   "age1sss1abcdef\n",
			calls: 1,
			want:  "age1sss1abcdef",
		},
		{
			name:    "missing policy file",
			path:    filepath.Join(t.TempDir(), "nope.yaml"),
			wantErr: legacy.ErrPolicyFileNotFound,
		},
		{
			name:    "empty output",
			path:    policyPath,
			ret:     " \n",
			calls:   1,
			wantErr: legacy.ErrEmptyRecipient,
		},
		{
			name:    "plugin failure",
			path:    policyPath,
			retErr:  errors.New("exit status 1"),
			calls:   1,
			wantErr: legacy.ErrRecipientGenerationFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			d := legacymock.NewMockRecipientDeriver(ctrl)
			d.EXPECT().DeriveRecipient(gomock.Any(), tt.path).Return(tt.ret, tt.retErr).Times(tt.calls)

			got, err := legacy.DeriveRecipient(ctx, d, tt.path)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
