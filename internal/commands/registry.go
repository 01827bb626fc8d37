package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/arkai-assistant/backend/internal/models"
)

// ErrDuplicateAlias is returned when two commands claim the same surface form.
var ErrDuplicateAlias = errors.New("duplicate command alias")

// Mention is an @-mention of a chat member inside the command text.
type Mention struct {
	UserID string
	Text   string // surface form including "@"
}

// Source describes who sent a command and where.
type Source struct {
	ConversationID string
	UserID         string
	IsGroup        bool
	MentionsBot    bool
	Mentions       []Mention
}

// Invocation is one resolved command call.
type Invocation struct {
	Command string
	Args    string
	Org     *models.Organization
	Source  Source
}

// OrgID returns the feature-data key of the invocation: the conversation id.
func (inv Invocation) OrgID() string { return inv.Source.ConversationID }

// HandlerFunc answers an invocation with reply text.
type HandlerFunc func(ctx context.Context, inv Invocation) (string, error)

// Command binds a canonical name and its aliases to a handler.
// An alias ending in ":" also matches when glued to its argument, as in "งาน:ส่งรายงาน".
type Command struct {
	Name    string
	Aliases []string
	Handler HandlerFunc
}

// Registry is the immutable alias table built once at startup.
type Registry struct {
	byAlias  map[string]*Command
	glued    []string
	commands []*Command
}

var folder = cases.Fold()

// NormalizeToken canonicalizes a command token: NFC composition then Unicode case folding.
func NormalizeToken(tok string) string {
	return folder.String(norm.NFC.String(strings.TrimSpace(tok)))
}

// NewRegistry builds the reverse alias lookup and rejects any alias claimed twice.
func NewRegistry(cmds []Command) (*Registry, error) {
	r := &Registry{byAlias: make(map[string]*Command)}
	for i := range cmds {
		cmd := &cmds[i]
		if cmd.Handler == nil {
			return nil, fmt.Errorf("command %q has no handler", cmd.Name)
		}
		names := append([]string{cmd.Name}, cmd.Aliases...)
		seen := map[string]bool{}
		for _, a := range names {
			key := NormalizeToken(a)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			if prev, ok := r.byAlias[key]; ok {
				return nil, fmt.Errorf("%w: %q used by %q and %q", ErrDuplicateAlias, a, prev.Name, cmd.Name)
			}
			r.byAlias[key] = cmd
			if strings.HasSuffix(key, ":") {
				r.glued = append(r.glued, key)
			}
		}
		r.commands = append(r.commands, cmd)
	}
	// Longest glued prefix first.
	sort.Slice(r.glued, func(i, j int) bool { return len(r.glued[i]) > len(r.glued[j]) })
	return r, nil
}

// MustRegistry is NewRegistry for static tables; it panics on a malformed table.
func MustRegistry(cmds []Command) *Registry {
	r, err := NewRegistry(cmds)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup resolves a command token and its argument text.
// A token carrying a glued alias prefix moves the remainder into the arguments.
func (r *Registry) Lookup(token, args string) (*Command, string, bool) {
	key := NormalizeToken(token)
	if cmd, ok := r.byAlias[key]; ok {
		return cmd, args, true
	}
	for _, prefix := range r.glued {
		if strings.HasPrefix(key, prefix) {
			rest := strings.TrimSpace(stripPrefixFold(token, len([]rune(prefix))))
			if args != "" {
				rest = strings.TrimSpace(rest + " " + args)
			}
			return r.byAlias[prefix], rest, true
		}
	}
	return nil, args, false
}

// Names returns the canonical command names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.commands))
	for i, c := range r.commands {
		out[i] = c.Name
	}
	return out
}

// stripPrefixFold drops the first n runes of the NFC form of s.
func stripPrefixFold(s string, n int) string {
	runes := []rune(norm.NFC.String(strings.TrimSpace(s)))
	if n >= len(runes) {
		return ""
	}
	return string(runes[n:])
}
