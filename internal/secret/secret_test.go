package secret

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		caption string
		want    string
		wantOK  bool
	}{
		{name: "word after marker", caption: "Here you go, password: secret123 enjoy", want: "secret123", wantOK: true},
		{name: "no marker", caption: "Here you go, enjoy", wantOK: false},
		{name: "empty caption", caption: "", wantOK: false},
		{name: "marker with nothing after", caption: "password:", wantOK: false},
		{name: "marker followed by whitespace only", caption: "password:   \n\t", wantOK: false},
		{name: "upper case marker", caption: "PASSWORD: Hunter2", want: "Hunter2", wantOK: true},
		{name: "mixed case keeps token case", caption: "Pass info - Password:AbC", want: "AbC", wantOK: true},
		{name: "token on next line", caption: "password:\nline2 rest", want: "line2", wantOK: true},
		{name: "last marker wins", caption: "password: old ... password: new", want: "new", wantOK: true},
		{name: "path separators neutralized", caption: "password: a/b", want: "a_b", wantOK: true},
		{name: "only ASCII letters fold", caption: "pa\u017Fsword: x", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extract(tt.caption)

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApply_WithSecret(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "video.mp4")
	require.NoError(t, os.WriteFile(local, []byte("data"), 0o644))

	final, err := Apply(local, "abc", true)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "pass_abc_video.mp4"), final)
	assert.FileExists(t, final)
	assert.NoFileExists(t, local)
}

func TestApply_KeepsExistingFile(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "pass_x_archive.rar")
	require.NoError(t, os.WriteFile(existing, []byte("first"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pass_x_archive (1).rar"), []byte("second"), 0o644))

	local := filepath.Join(dir, "archive.rar")
	require.NoError(t, os.WriteFile(local, []byte("third"), 0o644))

	final, err := Apply(local, "x", true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "pass_x_archive (2).rar"), final)
	assert.NoFileExists(t, local)

	b, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "first", string(b))

	b, err = os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, "third", string(b))
}

func TestApply_WithoutSecret(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "video.mp4")
	require.NoError(t, os.WriteFile(local, []byte("data"), 0o644))

	final, err := Apply(local, "", false)
	require.NoError(t, err)

	assert.Equal(t, local, final)
	assert.FileExists(t, local)
}

func TestApply_RenameFailure(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "gone.zip")

	_, err := Apply(missing, "abc", true)
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "pass_abc_video.mp4", FileName("video.mp4", "abc"))
}

func TestExtract_NonASCIICaption(t *testing.T) {
	got, ok := Extract("İstanbul arşivi - Password: şifre42 tamam")

	assert.True(t, ok)
	assert.Equal(t, "şifre42", got)
}
