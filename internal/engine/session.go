// Package engine implements the quest synchronization core: a pure
// reconciler deriving progress from the local repository plus the forge,
// and an executor driving both stores through the multi-step actions that
// advance a stage or restore a known-good baseline.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/CodexForgeBR/questmaster/internal/forge"
	"github.com/CodexForgeBR/questmaster/internal/gitrepo"
	"github.com/CodexForgeBR/questmaster/internal/quest"
)

// Options binds a session to its remotes. Origin is the learner's repository
// remote receiving pushed branches; Reference is the remote carrying the
// quest's reference branches (starter and solution tips).
type Options struct {
	Origin     string
	Reference  string
	BaseBranch string
}

// DefaultOptions matches the conventional remote layout.
func DefaultOptions() Options {
	return Options{Origin: "origin", Reference: "upstream", BaseBranch: "main"}
}

// Session is the exclusive owner of one loaded quest: one working directory,
// one forge repository. All ambient state (directory, remotes, clients) is
// explicit here so multiple sessions coexist in tests.
type Session struct {
	// ID identifies the session in log lines.
	ID string

	def      *quest.Definition
	repo     Repository
	forge    forge.Client
	notifier *Notifier
	opts     Options

	// mu serializes mutating actions against the working directory and the
	// forge idempotency keys. Reads take the shared side.
	mu sync.RWMutex
}

// NewSession assembles a session from its collaborators.
func NewSession(def *quest.Definition, repo Repository, client forge.Client, opts Options) *Session {
	if opts.Origin == "" {
		opts.Origin = DefaultOptions().Origin
	}
	if opts.Reference == "" {
		opts.Reference = DefaultOptions().Reference
	}
	if opts.BaseBranch == "" {
		opts.BaseBranch = DefaultOptions().BaseBranch
	}
	return &Session{
		ID:       uuid.NewString(),
		def:      def,
		repo:     repo,
		forge:    client,
		notifier: NewNotifier(),
		opts:     opts,
	}
}

// LoadSession binds a session to the quest in dir. The definition is read
// from the repository's meta branch when present, falling back to a
// working-tree file, and the forge client is wrapped with the given retry
// budget.
func LoadSession(ctx context.Context, dir string, opts Options, retry forge.RetryConfig) (*Session, error) {
	repo := gitrepo.New(dir)

	var def *quest.Definition
	contents, err := repo.ShowFile(ctx, "meta", quest.DefinitionFile)
	if err == nil {
		def, err = quest.Parse([]byte(contents))
	} else {
		def, err = quest.Load(filepath.Join(dir, quest.DefinitionFile))
	}
	if err != nil {
		return nil, fmt.Errorf("load quest definition: %w", err)
	}

	client := forge.NewRetryingClient(forge.NewClient(dir), retry)
	return NewSession(def, repo, client, opts), nil
}

// Definition returns the loaded quest definition.
func (s *Session) Definition() *quest.Definition {
	return s.def
}

// Notifier returns the session's snapshot broadcast point.
func (s *Session) Notifier() *Notifier {
	return s.notifier
}

// refBranch qualifies a branch name with the reference remote.
func (s *Session) refBranch(branch string) string {
	return s.opts.Reference + "/" + branch
}

// shortID is the session id prefix used in branch names and log lines.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
