package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEligible(t *testing.T) {
	tests := []struct {
		name string
		path string
		want bool
	}{
		{"plain text", "/inbox/chat.txt", true},
		{"markdown", "/inbox/notes.md", true},
		{"json export", "/inbox/conversations.json", true},
		{"uppercase extension", "/inbox/CHAT.TXT", true},
		{"already processed", "/inbox/chat.txt.processed", false},
		{"hidden file", "/inbox/.chat.txt", false},
		{"unrelated extension", "/inbox/image.png", false},
		{"no extension", "/inbox/README", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, eligible(tt.path))
		})
	}
}

func TestNew_RequiresHandlerAndDir(t *testing.T) {
	dir := t.TempDir()

	_, err := New(dir, nil, zap.NewNop())
	require.Error(t, err)

	_, err = New(filepath.Join(dir, "missing"), func(context.Context, string, string) error { return nil }, zap.NewNop())
	require.Error(t, err)
}

func TestProcess_HandsOffAndRenames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chat.txt")
	require.NoError(t, os.WriteFile(path, []byte("User: Hi\nAssistant: Hello"), 0o600))

	var gotRaw, gotSource string
	w, err := New(dir, func(_ context.Context, raw, source string) error {
		gotRaw, gotSource = raw, source
		return nil
	}, zap.NewNop())
	require.NoError(t, err)

	w.process(context.Background(), path)

	assert.Equal(t, "User: Hi\nAssistant: Hello", gotRaw)
	assert.Equal(t, path, gotSource)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(path + processedSuffix)
	assert.NoError(t, err)
}

func TestProcess_HandlerFailureLeavesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chat.txt")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o600))

	w, err := New(dir, func(context.Context, string, string) error {
		return assert.AnError
	}, zap.NewNop())
	require.NoError(t, err)

	w.process(context.Background(), path)

	// Failed files stay in the inbox for retry.
	_, err = os.Stat(path)
	assert.NoError(t, err)
	_, err = os.Stat(path + processedSuffix)
	assert.True(t, os.IsNotExist(err))
}
