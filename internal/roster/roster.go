// Package roster reconciles presence snapshots into disjoint online and
// offline lists.
package roster

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"leafchat/internal/domain"
	"leafchat/internal/pkg/logx"
)

// MaxLookups bounds concurrent profile lookups per snapshot.
const MaxLookups = 8

// Roster is the partitioned user list shown in the sidebar.
type Roster struct {
	Online  []domain.Profile
	Offline []domain.Profile
}

// Resolver looks up the full profile of a user.
type Resolver interface {
	Lookup(ctx context.Context, username string) (domain.Profile, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, username string) (domain.Profile, error)

func (f ResolverFunc) Lookup(ctx context.Context, username string) (domain.Profile, error) {
	return f(ctx, username)
}

// Policy decides what happens to an online user whose lookup failed.
type Policy int

const (
	// KeepUnresolved keeps the user online with a bare profile.
	KeepUnresolved Policy = iota
	// DropUnresolved removes the user from the online list.
	DropUnresolved
)

// Resolve looks up every username of a snapshot in parallel. The result maps
// username to profile; failed lookups are logged and, under KeepUnresolved,
// replaced by a bare profile. Cancellation of ctx is the only error returned.
func Resolve(ctx context.Context, r Resolver, usernames []string, policy Policy) (map[string]domain.Profile, error) {
	var mu sync.Mutex
	resolved := make(map[string]domain.Profile, len(usernames))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxLookups)
	for _, name := range dedupeNames(usernames) {
		g.Go(func() error {
			profile, err := r.Lookup(gctx, name)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				logx.Warn("roster lookup failed", "username", name, "error", err.Error())
				if policy == DropUnresolved {
					return nil
				}
				profile = domain.Profile{Username: name}
			}
			if profile.Username == "" {
				profile.Username = name
			}
			mu.Lock()
			resolved[name] = profile
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return resolved, nil
}

// Merge applies a snapshot to prev:
//
//	wentOffline = prev.Online - online
//	Offline     = (prev.Offline + wentOffline) - online, deduplicated
//	Online      = resolved profiles of online, in snapshot order
//
// Usernames missing from resolved are left out of Online but never added to
// Offline, so the two lists stay disjoint.
func Merge(prev Roster, online []string, resolved map[string]domain.Profile) Roster {
	inSnapshot := make(map[string]struct{}, len(online))
	for _, name := range online {
		inSnapshot[name] = struct{}{}
	}

	next := Roster{}
	seen := make(map[string]struct{})
	for _, name := range online {
		if _, dup := seen[name]; dup {
			continue
		}
		profile, ok := resolved[name]
		if !ok {
			continue
		}
		seen[name] = struct{}{}
		next.Online = append(next.Online, profile)
	}

	offSeen := make(map[string]struct{})
	addOffline := func(p domain.Profile) {
		if _, live := inSnapshot[p.Username]; live {
			return
		}
		if _, dup := offSeen[p.Username]; dup {
			return
		}
		offSeen[p.Username] = struct{}{}
		next.Offline = append(next.Offline, p)
	}
	for _, p := range prev.Offline {
		addOffline(p)
	}
	for _, p := range prev.Online {
		addOffline(p)
	}
	return next
}

// Seed builds the offline list from the user directory minus whoever is online.
func Seed(directory []domain.Profile, online []domain.Profile) []domain.Profile {
	live := make(map[string]struct{}, len(online))
	for _, p := range online {
		live[p.Username] = struct{}{}
	}
	var offline []domain.Profile
	seen := make(map[string]struct{}, len(directory))
	for _, p := range directory {
		if p.Username == "" {
			continue
		}
		if _, ok := live[p.Username]; ok {
			continue
		}
		if _, ok := seen[p.Username]; ok {
			continue
		}
		seen[p.Username] = struct{}{}
		offline = append(offline, p)
	}
	return offline
}

// Reconcile resolves a snapshot and merges it into prev.
func Reconcile(ctx context.Context, r Resolver, prev Roster, online []string, policy Policy) (Roster, error) {
	resolved, err := Resolve(ctx, r, online, policy)
	if err != nil {
		return prev, err
	}
	return Merge(prev, online, resolved), nil
}

func dedupeNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
