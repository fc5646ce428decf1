// Package vcstest provides an in-memory version-control backend for tests.
// Checkouts write real files and keep their bookkeeping in a ".svn"
// metadata directory, so the pipeline runs against it unchanged.
package vcstest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/terra-clan/exercise-submitter/internal/models"
	"github.com/terra-clan/exercise-submitter/internal/vcs"
)

// MetadataDir is the working-copy metadata directory created by checkouts
const MetadataDir = ".svn"

// PreCommitHook may refuse a commit. files maps repository paths to content.
type PreCommitHook func(target models.SubmissionTarget, files map[string]string) *models.Rejection

// PostCommitHook may report problems about a stored revision
type PostCommitHook func(target models.SubmissionTarget, revision int64) string

// Server hosts in-memory repositories keyed by URL
type Server struct {
	mu      sync.Mutex
	repos   map[string]*repository
	copies  map[string]*workingCopy
	clock   time.Time
	commits int

	PreCommit   PreCommitHook
	PostCommit  PostCommitHook
	CommitErr   error
	CheckoutErr error
	Unreachable bool
}

type snapshot struct {
	files map[string]string
	dirs  map[string]bool
}

type revision struct {
	snap  snapshot
	entry models.LogEntry
}

type repository struct {
	revisions []revision
}

type workingCopy struct {
	target    models.SubmissionTarget
	prefix    string
	versioned map[string]bool // relative path -> is directory
}

// NewServer creates an empty server
func NewServer() *Server {
	return &Server{
		repos:  make(map[string]*repository),
		copies: make(map[string]*workingCopy),
		clock:  time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// CreateRepository creates a repository at url whose revision 1 holds files
func (s *Server) CreateRepository(url, author string, files map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := newSnapshot()
	for p, content := range files {
		snap.addFile(p, content)
	}
	s.repos[url] = &repository{}
	s.appendRevision(s.repos[url], snap, author, "initial import")
}

// Files returns the content of revision rev (vcs.Head for the latest)
func (s *Server) Files(url string, rev int64) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, ok := s.repos[url]
	if !ok {
		return nil
	}
	snap, err := repo.at(rev)
	if err != nil {
		return nil
	}
	out := make(map[string]string, len(snap.files))
	for p, c := range snap.files {
		out[p] = c
	}
	return out
}

// HeadRevision returns the latest revision number of url
func (s *Server) HeadRevision(url string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if repo, ok := s.repos[url]; ok {
		return int64(len(repo.revisions))
	}
	return 0
}

// CommitCount returns the number of commits attempted
func (s *Server) CommitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// Client returns a backend acting as user
func (s *Server) Client(user string) vcs.Client {
	return &client{server: s, user: user}
}

func (s *Server) appendRevision(repo *repository, snap snapshot, author, message string) int64 {
	s.clock = s.clock.Add(time.Hour)
	number := int64(len(repo.revisions) + 1)
	repo.revisions = append(repo.revisions, revision{
		snap: snap,
		entry: models.LogEntry{
			Revision: number,
			Date:     s.clock,
			Author:   author,
			Message:  message,
		},
	})
	return number
}

func (r *repository) at(rev int64) (snapshot, error) {
	if rev == vcs.Head {
		rev = int64(len(r.revisions))
	}
	if rev < 1 || rev > int64(len(r.revisions)) {
		return snapshot{}, fmt.Errorf("%w: %d", vcs.ErrRevisionNotFound, rev)
	}
	return r.revisions[rev-1].snap, nil
}

type client struct {
	server *Server
	user   string
}

func (c *client) Checkout(ctx context.Context, target models.SubmissionTarget, rev int64, dir string) (string, error) {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Unreachable {
		return "", vcs.ErrUnreachable
	}
	if s.CheckoutErr != nil {
		return "", s.CheckoutErr
	}

	repo, ok := s.repos[target.URL]
	if !ok {
		return "", fmt.Errorf("%w: no repository at %s", vcs.ErrPathNotFound, target.URL)
	}
	snap, err := repo.at(rev)
	if err != nil {
		return "", err
	}

	prefix := cleanPath(target.Path)
	if prefix != "" && !snap.dirs[prefix] {
		return "", fmt.Errorf("%w: %s", vcs.ErrPathNotFound, target.Path)
	}

	wc := &workingCopy{target: target, prefix: prefix, versioned: make(map[string]bool)}
	for d := range snap.dirs {
		if rel, ok := relTo(prefix, d); ok && rel != "" {
			if err := os.MkdirAll(filepath.Join(dir, filepath.FromSlash(rel)), 0o755); err != nil {
				return "", err
			}
			wc.versioned[rel] = true
		}
	}
	for p, content := range snap.files {
		if rel, ok := relTo(prefix, p); ok {
			full := filepath.Join(dir, filepath.FromSlash(rel))
			if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
				return "", err
			}
			if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
				return "", err
			}
			wc.versioned[rel] = false
		}
	}
	if err := os.MkdirAll(filepath.Join(dir, MetadataDir), 0o755); err != nil {
		return "", err
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	s.copies[root] = wc
	return root, nil
}

func (c *client) WalkStatus(ctx context.Context, root string, fn vcs.StatusFunc) error {
	wc, root, err := c.server.lookup(root)
	if err != nil {
		return err
	}

	c.server.mu.Lock()
	versioned := make(map[string]bool, len(wc.versioned))
	for rel, isDir := range wc.versioned {
		versioned[rel] = isDir
	}
	c.server.mu.Unlock()

	statuses := make(map[string]vcs.PathStatus)
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		if d.IsDir() && d.Name() == MetadataDir {
			return filepath.SkipDir
		}
		rel, _ := filepath.Rel(root, p)
		rel = filepath.ToSlash(rel)
		if _, ok := versioned[rel]; ok {
			statuses[rel] = vcs.StatusUnchanged
		} else {
			statuses[rel] = vcs.StatusUnversioned
		}
		return nil
	})
	if err != nil {
		return err
	}

	for rel := range versioned {
		if _, ok := statuses[rel]; !ok {
			statuses[rel] = vcs.StatusMissing
		}
	}
	// a missing directory is reported once, not per child
	missing := make(map[string]bool)
	for rel, status := range statuses {
		if status == vcs.StatusMissing {
			missing[rel] = true
		}
	}
	for rel := range missing {
		for parent := path.Dir(rel); parent != "."; parent = path.Dir(parent) {
			if missing[parent] {
				delete(statuses, rel)
				break
			}
		}
	}

	paths := make([]string, 0, len(statuses))
	for p := range statuses {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(filepath.Join(root, filepath.FromSlash(p)), statuses[p]); err != nil {
			return err
		}
	}
	return nil
}

func (c *client) Add(p string) error {
	wc, rel, err := c.server.locate(p)
	if err != nil {
		return err
	}
	info, err := os.Stat(p)
	if err != nil {
		return fmt.Errorf("cannot add %s: %w", rel, err)
	}

	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	if parent := path.Dir(rel); parent != "." {
		if isDir, ok := wc.versioned[parent]; !ok || !isDir {
			return fmt.Errorf("cannot add %s: parent %s is not under version control", rel, parent)
		}
	}
	wc.versioned[rel] = info.IsDir()
	return nil
}

func (c *client) Delete(p string) error {
	wc, rel, err := c.server.locate(p)
	if err != nil {
		return err
	}

	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	if _, ok := wc.versioned[rel]; !ok {
		return fmt.Errorf("cannot delete %s: not under version control", rel)
	}
	for v := range wc.versioned {
		if v == rel || strings.HasPrefix(v, rel+"/") {
			delete(wc.versioned, v)
		}
	}
	return nil
}

func (c *client) Commit(ctx context.Context, root string, params vcs.CommitParams) (models.CommitOutcome, error) {
	noop := models.CommitOutcome{Revision: models.NoRevision}

	wc, root, err := c.server.lookup(root)
	if err != nil {
		return noop, err
	}

	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commits++
	if s.Unreachable {
		return noop, vcs.ErrUnreachable
	}
	if s.CommitErr != nil {
		return noop, s.CommitErr
	}

	repo := s.repos[wc.target.URL]
	head, err := repo.at(vcs.Head)
	if err != nil {
		return noop, err
	}

	next := newSnapshot()
	for d := range head.dirs {
		if _, ok := relTo(wc.prefix, d); !ok {
			next.dirs[d] = true
		}
	}
	for p, content := range head.files {
		if _, ok := relTo(wc.prefix, p); !ok {
			next.files[p] = content
		}
	}
	if wc.prefix != "" {
		next.addDir(wc.prefix)
	}

	for rel, isDir := range wc.versioned {
		full := filepath.Join(root, filepath.FromSlash(rel))
		info, statErr := os.Stat(full)
		if statErr != nil {
			if errors.Is(statErr, fs.ErrNotExist) && params.DeleteMissing {
				continue
			}
			return noop, fmt.Errorf("%w: %s", vcs.ErrMissingPaths, rel)
		}

		repoPath := path.Join(wc.prefix, rel)
		if isDir || info.IsDir() {
			next.addDir(repoPath)
			continue
		}
		data, err := os.ReadFile(full)
		if err != nil {
			return noop, err
		}
		next.addFile(repoPath, string(data))
	}

	if next.equal(head) {
		return noop, nil
	}

	if s.PreCommit != nil {
		if rejection := s.PreCommit(wc.target, next.files); rejection != nil {
			return models.CommitOutcome{Revision: models.NoRevision, Rejection: rejection}, nil
		}
	}

	number := s.appendRevision(repo, next, c.user, params.Message)
	for rel := range wc.versioned {
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel))); err != nil {
			delete(wc.versioned, rel)
		}
	}

	outcome := models.CommitOutcome{Revision: number}
	if s.PostCommit != nil {
		if text := s.PostCommit(wc.target, number); text != "" {
			outcome.Rejection = &models.Rejection{Code: models.RejectionHookReport, Text: text}
		}
	}
	return outcome, nil
}

func (c *client) Log(ctx context.Context, target models.SubmissionTarget) ([]models.LogEntry, error) {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Unreachable {
		return nil, vcs.ErrUnreachable
	}
	repo, ok := s.repos[target.URL]
	if !ok {
		return nil, fmt.Errorf("%w: no repository at %s", vcs.ErrPathNotFound, target.URL)
	}

	prefix := cleanPath(target.Path)
	var entries []models.LogEntry
	previous := newSnapshot()
	for _, rev := range repo.revisions {
		current := rev.snap.subtree(prefix)
		if !current.equal(previous) {
			entries = append(entries, rev.entry)
		}
		previous = current
	}

	// newest first, like a repository log
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

func (c *client) TestConnection(ctx context.Context, url string) error {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Unreachable {
		return vcs.ErrUnreachable
	}
	if _, ok := s.repos[url]; !ok {
		return fmt.Errorf("%w: no repository at %s", vcs.ErrPathNotFound, url)
	}
	return nil
}

func (s *Server) lookup(root string) (*workingCopy, string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	wc, ok := s.copies[abs]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", vcs.ErrNotWorkingCopy, root)
	}
	return wc, abs, nil
}

// locate finds the working copy holding p and p's path relative to it
func (s *Server) locate(p string) (*workingCopy, string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	best := ""
	for root := range s.copies {
		if strings.HasPrefix(abs, root+string(filepath.Separator)) && len(root) > len(best) {
			best = root
		}
	}
	if best == "" {
		return nil, "", fmt.Errorf("%w: %s", vcs.ErrNotWorkingCopy, p)
	}
	rel, _ := filepath.Rel(best, abs)
	return s.copies[best], filepath.ToSlash(rel), nil
}

func newSnapshot() snapshot {
	return snapshot{files: make(map[string]string), dirs: make(map[string]bool)}
}

func (s snapshot) addDir(p string) {
	for p != "." && p != "" && p != "/" {
		s.dirs[p] = true
		p = path.Dir(p)
	}
}

func (s snapshot) addFile(p, content string) {
	p = cleanPath(p)
	s.files[p] = content
	s.addDir(path.Dir(p))
}

func (s snapshot) subtree(prefix string) snapshot {
	out := newSnapshot()
	for d := range s.dirs {
		if _, ok := relTo(prefix, d); ok {
			out.dirs[d] = true
		}
	}
	for p, c := range s.files {
		if _, ok := relTo(prefix, p); ok {
			out.files[p] = c
		}
	}
	return out
}

func (s snapshot) equal(o snapshot) bool {
	if len(s.files) != len(o.files) || len(s.dirs) != len(o.dirs) {
		return false
	}
	for p, c := range s.files {
		if oc, ok := o.files[p]; !ok || oc != c {
			return false
		}
	}
	for d := range s.dirs {
		if !o.dirs[d] {
			return false
		}
	}
	return true
}

// relTo returns p relative to prefix when p is prefix or lies below it
func relTo(prefix, p string) (string, bool) {
	switch {
	case prefix == "":
		return p, true
	case p == prefix:
		return "", true
	case strings.HasPrefix(p, prefix+"/"):
		return p[len(prefix)+1:], true
	default:
		return "", false
	}
}

func cleanPath(p string) string {
	return strings.Trim(path.Clean("/"+p), "/")
}

// Factory returns a vcs.Factory whose clients act as the credential's user
func (s *Server) Factory() vcs.Factory {
	return func(creds models.Credentials) vcs.Client {
		return s.Client(creds.Username)
	}
}
