package application

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/chainguard-dev/clog"

	"github.com/ericfisherdev/elvagent/internal/domain/model"
	"github.com/ericfisherdev/elvagent/internal/domain/port/driven"
)

var (
	// runIDPattern extracts the workflow run ID from an Actions details link,
	// e.g. https://github.com/o/r/actions/runs/123456/job/789.
	runIDPattern = regexp.MustCompile(`/runs/(\d+)`)

	// sourceRefPattern matches "path/to/file.ext:LINE" references in logs.
	sourceRefPattern = regexp.MustCompile(`([A-Za-z0-9_./-]+\.[A-Za-z0-9]+):(\d+)`)

	ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

	// actionsTimestamp is the prefix GitHub Actions writes on every log line.
	actionsTimestamp = regexp.MustCompile(`(?m)^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?Z `)
)

// InvestigationLimits bounds the context gathered for a fix attempt.
type InvestigationLimits struct {
	MaxLogChars     int
	MaxFileBytes    int // Files larger than this are skipped, never truncated.
	MaxContextBytes int
}

// DefaultInvestigationLimits returns the stock budgets.
func DefaultInvestigationLimits() InvestigationLimits {
	return InvestigationLimits{MaxLogChars: 4000, MaxFileBytes: 20000, MaxContextBytes: 60000}
}

// SourceFile is a repository file handed to the model in full.
type SourceFile struct {
	Path    string
	Content string
}

// Investigation is everything gathered about a failing commit.
type Investigation struct {
	FailedChecks []model.CheckRun
	Log          string
	Annotations  []model.Annotation
	Files        []SourceFile
}

// Investigator gathers log, annotation and source context for the fixer.
// Every retrieval failure degrades to less context; none is fatal.
type Investigator struct {
	gh     driven.GitHubClient
	root   string
	limits InvestigationLimits
}

// NewInvestigator creates an Investigator reading files under root.
func NewInvestigator(gh driven.GitHubClient, root string, limits InvestigationLimits) *Investigator {
	return &Investigator{gh: gh, root: root, limits: limits}
}

// Investigate collects context for the snapshot's failed checks. The working
// copy must already be synchronized to the snapshot's branch.
func (i *Investigator) Investigate(ctx context.Context, snap model.Snapshot) Investigation {
	inv := Investigation{FailedChecks: model.FailedChecks(snap.CheckRuns)}
	inv.Log = i.failureLog(ctx, inv.FailedChecks)

	for _, cr := range inv.FailedChecks {
		anns, err := i.gh.ListCheckAnnotations(ctx, cr.ID)
		if err != nil {
			clog.FromContext(ctx).Warn("annotation fetch failed", "check", cr.Name, "error", err)
			continue
		}
		inv.Annotations = append(inv.Annotations, anns...)
	}

	inv.Files = i.readFiles(ctx, candidatePaths(inv.Annotations, inv.Log))
	return inv
}

// failureLog returns the tail of the first failed check's workflow log, or ""
// when none can be retrieved.
func (i *Investigator) failureLog(ctx context.Context, failed []model.CheckRun) string {
	for _, cr := range failed {
		runID, ok := RunIDFromURL(cr.DetailsURL)
		if !ok {
			continue
		}

		archive, err := i.gh.GetWorkflowRunLogs(ctx, runID)
		if err != nil {
			clog.FromContext(ctx).Warn("log fetch failed", "run_id", runID, "error", err)
			return ""
		}

		text, err := extractLog(archive, cr.Name)
		if err != nil {
			clog.FromContext(ctx).Warn("log archive unreadable", "run_id", runID, "error", err)
			return ""
		}
		return tail(CleanLog(text), i.limits.MaxLogChars)
	}
	return ""
}

// RunIDFromURL extracts the workflow run ID from a check's details link.
func RunIDFromURL(detailsURL string) (int64, bool) {
	m := runIDPattern.FindStringSubmatch(detailsURL)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// extractLog returns the archive entry whose name mentions checkName, or the
// first file entry when none does.
func extractLog(archive []byte, checkName string) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return "", fmt.Errorf("read zip: %w", err)
	}

	var first, match *zip.File
	want := strings.ToLower(checkName)
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if first == nil {
			first = f
		}
		if want != "" && strings.Contains(strings.ToLower(f.Name), want) {
			match = f
			break
		}
	}

	chosen := match
	if chosen == nil {
		chosen = first
	}
	if chosen == nil {
		return "", errors.New("no files found in log archive")
	}

	rc, err := chosen.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", chosen.Name, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", chosen.Name, err)
	}
	return string(content), nil
}

// CleanLog strips ANSI escapes and Actions line timestamps.
func CleanLog(s string) string {
	s = ansiPattern.ReplaceAllString(s, "")
	s = actionsTimestamp.ReplaceAllString(s, "")
	return strings.ToValidUTF8(s, "�")
}

// tail keeps the last n bytes of s without splitting a rune.
func tail(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}

// candidatePaths lists annotation paths first, then paths scraped from the
// log, without duplicates.
func candidatePaths(anns []model.Annotation, log string) []string {
	seen := make(map[string]bool)
	var paths []string
	add := func(p string) {
		p = filepath.ToSlash(filepath.Clean(p))
		if p == "." || seen[p] {
			return
		}
		seen[p] = true
		paths = append(paths, p)
	}

	for _, a := range anns {
		if a.Path != "" {
			add(a.Path)
		}
	}
	for _, m := range sourceRefPattern.FindAllStringSubmatch(log, -1) {
		add(m[1])
	}
	return paths
}

func (i *Investigator) readFiles(ctx context.Context, paths []string) []SourceFile {
	log := clog.FromContext(ctx)

	root, err := os.OpenRoot(i.root)
	if err != nil {
		log.Warn("open working copy failed", "dir", i.root, "error", err)
		return nil
	}
	defer root.Close()

	var (
		files []SourceFile
		total int
	)
	for _, p := range paths {
		rel, err := checkRepoPath(root, p)
		if err != nil {
			if errors.Is(err, errSymlinkPath) {
				log.Warn("skipping source file", "path", p, "error", err)
			}
			continue
		}

		info, err := root.Lstat(rel)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if i.limits.MaxFileBytes > 0 && info.Size() > int64(i.limits.MaxFileBytes) {
			log.Info("skipping oversized file", "path", p, "bytes", info.Size())
			continue
		}
		if i.limits.MaxContextBytes > 0 && total+int(info.Size()) > i.limits.MaxContextBytes {
			log.Info("context budget exhausted", "path", p, "used", total)
			break
		}

		content, err := root.ReadFile(rel)
		if err != nil {
			log.Warn("read source file failed", "path", p, "error", err)
			continue
		}
		total += len(content)
		files = append(files, SourceFile{Path: p, Content: string(content)})
	}
	return files
}

var (
	errOutsideRepo = errors.New("path outside repository")
	errSymlinkPath = errors.New("path goes through a symlink")
)

// repoRelative cleans a repository-relative path, rejecting absolute paths,
// parent traversal and anything under .git.
func repoRelative(rel string) (string, error) {
	rel = filepath.FromSlash(strings.TrimSpace(rel))
	if rel == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q", errOutsideRepo, rel)
	}
	rel = filepath.Clean(rel)
	first, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	if first == ".git" {
		return "", fmt.Errorf("%w: %q", errOutsideRepo, rel)
	}
	return rel, nil
}

// checkRepoPath is repoRelative plus a walk over the components that already
// exist under root, refusing any symlink. A symlink committed on the branch
// could otherwise point at a file the agent must not read or overwrite, even
// one that stays inside the repository such as a hook under .git.
func checkRepoPath(root *os.Root, p string) (string, error) {
	rel, err := repoRelative(p)
	if err != nil {
		return "", err
	}

	parts := strings.Split(rel, string(filepath.Separator))
	for n := 1; n <= len(parts); n++ {
		prefix := filepath.Join(parts[:n]...)
		info, err := root.Lstat(prefix)
		if errors.Is(err, fs.ErrNotExist) {
			return rel, nil
		}
		if err != nil {
			return "", fmt.Errorf("inspect %s: %w", prefix, err)
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			return "", fmt.Errorf("%w: %q", errSymlinkPath, prefix)
		}
	}
	return rel, nil
}

// writeRepoFile replaces the file at rel under dir with content, creating
// parent directories as needed. All access goes through an os.Root, so the
// write cannot land outside dir.
func writeRepoFile(dir, rel, content string) error {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return fmt.Errorf("open working copy: %w", err)
	}
	defer root.Close()

	rel, err = checkRepoPath(root, rel)
	if err != nil {
		return err
	}
	if parent := filepath.Dir(rel); parent != "." {
		if err := root.MkdirAll(parent, 0o755); err != nil {
			return fmt.Errorf("create directory for %s: %w", rel, err)
		}
	}

	mode := fs.FileMode(0o644)
	if info, err := root.Lstat(rel); err == nil {
		mode = info.Mode().Perm()
	}
	if err := root.WriteFile(rel, []byte(content), mode); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}
