package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/terra-clan/exercise-submitter/internal/models"
)

const (
	remoteName     = "origin"
	envelopeMarker = "<submitResults"
)

// GitOptions configure a GitClient
type GitOptions struct {
	Username    string
	Password    string
	AuthorName  string
	AuthorEmail string
}

// GitClient implements Client on top of go-git. Revision numbers are the
// first-parent ordinals of the checked out branch, the root commit being 1.
//
// Server hooks answer through the push progress channel. A pre-receive or
// update hook exiting non-zero blocks the commit; one exiting 0 whose
// output holds a <submitResults> envelope reports problems on the stored
// revision. Output of post-receive hooks arrives after the push report
// and is never read, so post-commit reports must come from a pre-receive
// or update hook that exits 0.
type GitClient struct {
	opts GitOptions
	now  func() time.Time
}

// NewGitClient creates a git backend acting as the given user
func NewGitClient(opts GitOptions) *GitClient {
	if opts.AuthorName == "" {
		opts.AuthorName = opts.Username
	}
	return &GitClient{
		opts: opts,
		now:  time.Now,
	}
}

// Checkout clones target into dir and moves to revision
func (c *GitClient) Checkout(ctx context.Context, target models.SubmissionTarget, revision int64, dir string) (string, error) {
	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:  target.URL,
		Auth: c.auth(target.URL),
	})
	if err != nil {
		return "", fmt.Errorf("failed to clone %s: %w", target.URL, classifyTransportError(err))
	}

	chain, err := firstParentChain(repo)
	if err != nil {
		return "", err
	}
	if len(chain) == 0 {
		return "", fmt.Errorf("%w: repository is empty", ErrPathNotFound)
	}

	commit := chain[len(chain)-1]
	if revision != Head {
		if revision < 1 || revision > int64(len(chain)) {
			return "", fmt.Errorf("%w: %d", ErrRevisionNotFound, revision)
		}
		commit = chain[revision-1]

		wt, err := repo.Worktree()
		if err != nil {
			return "", fmt.Errorf("failed to open worktree: %w", err)
		}
		if err := wt.Checkout(&git.CheckoutOptions{Hash: commit.Hash, Force: true}); err != nil {
			return "", fmt.Errorf("failed to check out revision %d: %w", revision, err)
		}
	}

	rel := cleanRepoPath(target.Path)
	if _, found, err := subtreeHash(commit, rel); err != nil {
		return "", err
	} else if !found {
		return "", fmt.Errorf("%w: %s", ErrPathNotFound, target.Path)
	}

	slog.Debug("repository checked out", "url", target.URL, "path", rel, "commit", commit.Hash.String())
	return filepath.Join(dir, filepath.FromSlash(rel)), nil
}

// WalkStatus reports untracked and deleted files below root. Git tracks
// files only, so every reported path is a file.
func (c *GitClient) WalkStatus(ctx context.Context, root string, fn StatusFunc) error {
	repoRoot, err := findRepoRoot(root)
	if err != nil {
		return err
	}

	wt, err := openWorktree(repoRoot)
	if err != nil {
		return err
	}

	status, err := wt.Status()
	if err != nil {
		return fmt.Errorf("failed to read status: %w", err)
	}

	prefix, err := relSlash(repoRoot, root)
	if err != nil {
		return err
	}

	paths := make([]string, 0, len(status))
	for p := range status {
		if within(prefix, p) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(filepath.Join(repoRoot, filepath.FromSlash(p)), classifyStatus(status[p])); err != nil {
			return err
		}
	}
	return nil
}

// Add stages path
func (c *GitClient) Add(p string) error {
	repoRoot, err := findRepoRoot(filepath.Dir(p))
	if err != nil {
		return err
	}
	wt, err := openWorktree(repoRoot)
	if err != nil {
		return err
	}
	rel, err := relSlash(repoRoot, p)
	if err != nil {
		return err
	}
	if _, err := wt.Add(rel); err != nil {
		return fmt.Errorf("failed to add %s: %w", rel, err)
	}
	return nil
}

// Delete stages the removal of path
func (c *GitClient) Delete(p string) error {
	repoRoot, err := findRepoRoot(filepath.Dir(p))
	if err != nil {
		return err
	}
	wt, err := openWorktree(repoRoot)
	if err != nil {
		return err
	}
	rel, err := relSlash(repoRoot, p)
	if err != nil {
		return err
	}
	if _, err := wt.Remove(rel); err != nil {
		return fmt.Errorf("failed to delete %s: %w", rel, err)
	}
	return nil
}

// Commit records the working copy and pushes it. A clean working copy
// yields models.NoRevision without contacting the server.
func (c *GitClient) Commit(ctx context.Context, root string, params CommitParams) (models.CommitOutcome, error) {
	noop := models.CommitOutcome{Revision: models.NoRevision}

	repoRoot, err := findRepoRoot(root)
	if err != nil {
		return noop, err
	}
	repo, err := git.PlainOpen(repoRoot)
	if err != nil {
		return noop, fmt.Errorf("failed to open repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return noop, fmt.Errorf("failed to open worktree: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return noop, fmt.Errorf("failed to read status: %w", err)
	}
	if !params.DeleteMissing && hasMissing(status) {
		return noop, ErrMissingPaths
	}
	if !hasChanges(status) {
		return noop, nil
	}

	hash, err := wt.Commit(params.Message, &git.CommitOptions{
		All: true,
		Author: &object.Signature{
			Name:  c.opts.AuthorName,
			Email: c.opts.AuthorEmail,
			When:  c.now(),
		},
	})
	if err != nil {
		return noop, fmt.Errorf("failed to commit: %w", err)
	}

	revision, err := revisionOf(repo, hash)
	if err != nil {
		return noop, err
	}

	url, err := remoteURL(repo)
	if err != nil {
		return noop, err
	}

	var progress bytes.Buffer
	err = repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remoteName,
		Auth:       c.auth(url),
		Progress:   &progress,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		if isHookRejection(err) {
			text := progress.String()
			if strings.TrimSpace(text) == "" {
				text = err.Error()
			}
			slog.Info("push rejected by server hook", "url", url)
			return models.CommitOutcome{
				Revision:  models.NoRevision,
				Rejection: &models.Rejection{Code: models.RejectionBlocked, Text: text},
			}, nil
		}
		return noop, fmt.Errorf("failed to push: %w", classifyTransportError(err))
	}

	outcome := models.CommitOutcome{Revision: revision}
	if text := progress.String(); strings.Contains(text, envelopeMarker) {
		outcome.Rejection = &models.Rejection{Code: models.RejectionHookReport, Text: text}
	}
	return outcome, nil
}

// Log lists the revisions that changed target.Path, newest first
func (c *GitClient) Log(ctx context.Context, target models.SubmissionTarget) ([]models.LogEntry, error) {
	repo, err := git.CloneContext(ctx, memory.NewStorage(), nil, &git.CloneOptions{
		URL:  target.URL,
		Auth: c.auth(target.URL),
	})
	if err != nil {
		if errors.Is(err, transport.ErrEmptyRemoteRepository) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch history of %s: %w", target.URL, classifyTransportError(err))
	}

	return pathLog(repo, cleanRepoPath(target.Path))
}

// TestConnection lists the remote references of url
func (c *GitClient) TestConnection(ctx context.Context, url string) error {
	remote := git.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: remoteName,
		URLs: []string{url},
	})

	_, err := remote.ListContext(ctx, &git.ListOptions{Auth: c.auth(url)})
	if err != nil && !errors.Is(err, transport.ErrEmptyRemoteRepository) {
		return classifyTransportError(err)
	}
	return nil
}

func (c *GitClient) auth(url string) transport.AuthMethod {
	if c.opts.Username == "" {
		return nil
	}
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return &githttp.BasicAuth{Username: c.opts.Username, Password: c.opts.Password}
	}
	return nil
}

// firstParentChain returns the commits of HEAD's first-parent chain, oldest first
func firstParentChain(repo *git.Repository) ([]*object.Commit, error) {
	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to read HEAD commit: %w", err)
	}

	var chain []*object.Commit
	for {
		chain = append(chain, commit)
		if commit.NumParents() == 0 {
			break
		}
		if commit, err = commit.Parent(0); err != nil {
			return nil, fmt.Errorf("failed to read parent commit: %w", err)
		}
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

func revisionOf(repo *git.Repository, hash plumbing.Hash) (int64, error) {
	chain, err := firstParentChain(repo)
	if err != nil {
		return 0, err
	}
	for i, commit := range chain {
		if commit.Hash == hash {
			return int64(i + 1), nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrRevisionNotFound, hash)
}

// pathLog lists the revisions in which the subtree at rel was created,
// changed or removed
func pathLog(repo *git.Repository, rel string) ([]models.LogEntry, error) {
	chain, err := firstParentChain(repo)
	if err != nil {
		return nil, err
	}

	var (
		entries   []models.LogEntry
		prevHash  plumbing.Hash
		prevFound bool
	)
	for i, commit := range chain {
		hash, found, err := subtreeHash(commit, rel)
		if err != nil {
			return nil, err
		}
		if found != prevFound || hash != prevHash {
			entries = append(entries, models.LogEntry{
				Revision: int64(i + 1),
				Date:     commit.Author.When,
				Author:   commit.Author.Name,
				Message:  strings.TrimSpace(commit.Message),
			})
		}
		prevHash, prevFound = hash, found
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

func subtreeHash(commit *object.Commit, rel string) (plumbing.Hash, bool, error) {
	tree, err := commit.Tree()
	if err != nil {
		return plumbing.ZeroHash, false, fmt.Errorf("failed to read tree: %w", err)
	}
	if rel == "" {
		return tree.Hash, true, nil
	}

	entry, err := tree.FindEntry(rel)
	if err != nil {
		return plumbing.ZeroHash, false, nil
	}
	return entry.Hash, true, nil
}

func classifyStatus(fs *git.FileStatus) PathStatus {
	switch fs.Worktree {
	case git.Untracked:
		return StatusUnversioned
	case git.Deleted:
		return StatusMissing
	default:
		return StatusUnchanged
	}
}

func hasChanges(status git.Status) bool {
	for _, fs := range status {
		if fs.Staging != git.Unmodified && fs.Staging != git.Untracked {
			return true
		}
		if fs.Worktree == git.Modified || fs.Worktree == git.Deleted {
			return true
		}
	}
	return false
}

func hasMissing(status git.Status) bool {
	for _, fs := range status {
		if fs.Worktree == git.Deleted {
			return true
		}
	}
	return false
}

func isHookRejection(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "hook declined") || strings.Contains(msg, "pre-receive")
}

func classifyTransportError(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed):
		return fmt.Errorf("%w: %v", ErrAuthentication, err)
	case errors.Is(err, transport.ErrRepositoryNotFound),
		errors.Is(err, transport.ErrEmptyRemoteRepository):
		return fmt.Errorf("%w: %v", ErrPathNotFound, err)
	case errors.As(err, &netErr):
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	default:
		return err
	}
}

func remoteURL(repo *git.Repository) (string, error) {
	remote, err := repo.Remote(remoteName)
	if err != nil {
		return "", fmt.Errorf("failed to read remote: %w", err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("remote %s has no URL", remoteName)
	}
	return urls[0], nil
}

func openWorktree(repoRoot string) (*git.Worktree, error) {
	repo, err := git.PlainOpen(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to open worktree: %w", err)
	}
	return wt, nil
}

// findRepoRoot walks up from dir to the directory holding .git
func findRepoRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if info, err := os.Stat(filepath.Join(abs, git.GitDirName)); err == nil && info.IsDir() {
			return abs, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("%w: %s", ErrNotWorkingCopy, dir)
		}
		abs = parent
	}
}

func relSlash(base, target string) (string, error) {
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(base, absTarget)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel), nil
}

func within(prefix, p string) bool {
	return prefix == "" || p == prefix || strings.HasPrefix(p, prefix+"/")
}

func cleanRepoPath(p string) string {
	return strings.Trim(path.Clean("/"+p), "/")
}
