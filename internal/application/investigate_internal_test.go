package application

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/elvagent/internal/domain/model"
)

func zipArchive(t *testing.T, files map[string]string, order ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		require.NoError(t, err)
		if !strings.HasSuffix(name, "/") {
			_, err = w.Write([]byte(files[name]))
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractLog(t *testing.T) {
	files := map[string]string{
		"0_build.txt": "build ok",
		"1_lint.txt":  "E501 line too long",
	}
	archive := zipArchive(t, files, "setup/", "0_build.txt", "1_lint.txt")

	got, err := extractLog(archive, "Lint")
	require.NoError(t, err)
	assert.Equal(t, "E501 line too long", got)

	got, err = extractLog(archive, "pytest")
	require.NoError(t, err)
	assert.Equal(t, "build ok", got, "falls back to first file entry")

	_, err = extractLog(zipArchive(t, nil, "only-a-dir/"), "lint")
	assert.Error(t, err)

	_, err = extractLog([]byte("not a zip"), "lint")
	assert.Error(t, err)
}

func TestRunIDFromURL(t *testing.T) {
	tests := []struct {
		url    string
		want   int64
		wantOK bool
	}{
		{url: "https://github.com/o/r/actions/runs/123456/job/789", want: 123456, wantOK: true},
		{url: "https://github.com/o/r/actions/runs/42", want: 42, wantOK: true},
		{url: "https://ci.example.com/build/7"},
		{url: ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, ok := RunIDFromURL(tt.url)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCleanLog(t *testing.T) {
	raw := "2024-05-01T10:00:00.1234567Z \x1b[31mFAILED\x1b[0m tests/test_x.py::test_a\n" +
		"2024-05-01T10:00:01Z done\n"

	assert.Equal(t, "FAILED tests/test_x.py::test_a\ndone\n", CleanLog(raw))
}

func TestTail(t *testing.T) {
	assert.Equal(t, "abc", tail("abc", 10))
	assert.Equal(t, "abc", tail("abc", 0))
	assert.Equal(t, "def", tail("abcdef", 3))
	// "é" is two bytes; a cut inside it moves forward to the next rune.
	assert.Equal(t, "z", tail("éz", 2))
}

func TestCandidatePaths(t *testing.T) {
	anns := []model.Annotation{
		{Path: "src/app.py"},
		{Path: ""},
		{Path: "./src/app.py"},
	}
	log := "src/util.py:12: error\nFAILED tests/test_app.py:40 - AssertionError\nsrc/app.py:3: E501"

	assert.Equal(t, []string{"src/app.py", "src/util.py", "tests/test_app.py"}, candidatePaths(anns, log))
}

func TestRepoRelative(t *testing.T) {
	got, err := repoRelative(" pkg/./mod.py ")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("pkg", "mod.py"), got)

	for _, bad := range []string{"", "/etc/passwd", "../outside.py", "pkg/../../x", ".git/config"} {
		_, err := repoRelative(bad)
		assert.ErrorIs(t, err, errOutsideRepo, bad)
	}
}

// symlinkedRepo returns a repository dir whose app.py and lib/ are symlinks to
// a secret file and a directory outside it.
func symlinkedRepo(t *testing.T) (repo, secret string) {
	t.Helper()
	outside := t.TempDir()
	secret = filepath.Join(outside, "id_rsa")
	require.NoError(t, os.WriteFile(secret, []byte("TOP-SECRET"), 0o600))

	repo = t.TempDir()
	require.NoError(t, os.Symlink(secret, filepath.Join(repo, "app.py")))
	require.NoError(t, os.Symlink(outside, filepath.Join(repo, "lib")))
	require.NoError(t, os.MkdirAll(filepath.Join(repo, ".git", "hooks"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(repo, ".git", "hooks"), filepath.Join(repo, "hooks")))
	return repo, secret
}

func TestCheckRepoPath_Symlinks(t *testing.T) {
	repo, _ := symlinkedRepo(t)
	root, err := os.OpenRoot(repo)
	require.NoError(t, err)
	t.Cleanup(func() { _ = root.Close() })

	for _, p := range []string{"app.py", "lib/id_rsa", "lib/new.py", "hooks/pre-commit"} {
		_, err := checkRepoPath(root, p)
		assert.ErrorIs(t, err, errSymlinkPath, p)
	}

	got, err := checkRepoPath(root, "src/new/module.py")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("src", "new", "module.py"), got)
}

func TestWriteRepoFile(t *testing.T) {
	root := t.TempDir()

	require.NoError(t, writeRepoFile(root, "new/dir/file.py", "x = 1\n"))
	content, err := os.ReadFile(filepath.Join(root, "new", "dir", "file.py"))
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", string(content))

	assert.ErrorIs(t, writeRepoFile(root, "../escape.py", "x"), errOutsideRepo)
}

func TestWriteRepoFile_RefusesSymlinks(t *testing.T) {
	repo, secret := symlinkedRepo(t)

	assert.ErrorIs(t, writeRepoFile(repo, "app.py", "OVERWRITTEN"), errSymlinkPath)
	assert.ErrorIs(t, writeRepoFile(repo, "lib/planted.py", "x"), errSymlinkPath)
	assert.ErrorIs(t, writeRepoFile(repo, "hooks/pre-commit", "#!/bin/sh"), errSymlinkPath)

	content, err := os.ReadFile(secret)
	require.NoError(t, err)
	assert.Equal(t, "TOP-SECRET", string(content))
	_, err = os.Stat(filepath.Join(filepath.Dir(secret), "planted.py"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(repo, ".git", "hooks", "pre-commit"))
	assert.True(t, os.IsNotExist(err))
}

func TestReadFiles_SkipsSymlinks(t *testing.T) {
	repo, _ := symlinkedRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(repo, "real.py"), []byte("ok = True\n"), 0o644))

	inv := NewInvestigator(&stubLogSource{}, repo, DefaultInvestigationLimits())
	files := inv.readFiles(context.Background(), []string{"app.py", "lib/id_rsa", "real.py"})

	require.Len(t, files, 1)
	assert.Equal(t, "real.py", files[0].Path)
	for _, f := range files {
		assert.NotContains(t, f.Content, "TOP-SECRET")
	}
}

type stubLogSource struct {
	archive []byte
	logErr  error
	anns    map[int64][]model.Annotation
}

func (s *stubLogSource) ListOpenPRs(context.Context) ([]model.PullRequest, error) { return nil, nil }
func (s *stubLogSource) GetCheckRuns(context.Context, string) ([]model.CheckRun, error) {
	return nil, nil
}
func (s *stubLogSource) ListPRReviews(context.Context, int) ([]model.Review, error) { return nil, nil }

func (s *stubLogSource) ListCheckAnnotations(_ context.Context, id int64) ([]model.Annotation, error) {
	return s.anns[id], nil
}

func (s *stubLogSource) GetWorkflowRunLogs(context.Context, int64) ([]byte, error) {
	return s.archive, s.logErr
}

func TestInvestigator_Investigate(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "app.py"), []byte("print('hi')\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "big.py"), bytes.Repeat([]byte("#"), 100), 0o644))

	gh := &stubLogSource{
		archive: zipArchive(t, map[string]string{"test.txt": "src/big.py:1: boom\nsrc/missing.py:2: gone"}, "test.txt"),
		anns:    map[int64][]model.Annotation{1: {{Path: "src/app.py", Message: "undefined name"}}},
	}
	snap := model.Snapshot{CheckRuns: []model.CheckRun{
		{ID: 1, Name: "test", Status: "completed", Conclusion: "failure", DetailsURL: "https://github.com/o/r/actions/runs/55/job/1"},
		{ID: 2, Name: "build", Status: "completed", Conclusion: "success"},
	}}

	inv := NewInvestigator(gh, root, InvestigationLimits{MaxLogChars: 1000, MaxFileBytes: 50, MaxContextBytes: 1000}).
		Investigate(context.Background(), snap)

	require.Len(t, inv.FailedChecks, 1)
	assert.Contains(t, inv.Log, "boom")
	require.Len(t, inv.Annotations, 1)
	require.Len(t, inv.Files, 1, "oversized and missing files are skipped")
	assert.Equal(t, "src/app.py", inv.Files[0].Path)
}

func TestInvestigator_LogFailureDegrades(t *testing.T) {
	gh := &stubLogSource{logErr: errors.New("410 gone")}
	snap := model.Snapshot{CheckRuns: []model.CheckRun{
		{ID: 1, Name: "lint", Status: "completed", Conclusion: "failure", DetailsURL: "https://github.com/o/r/actions/runs/9"},
	}}

	inv := NewInvestigator(gh, t.TempDir(), DefaultInvestigationLimits()).Investigate(context.Background(), snap)

	assert.Empty(t, inv.Log)
	assert.Len(t, inv.FailedChecks, 1)
}
