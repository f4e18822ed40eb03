package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"korebuild-tools/internal/types"
)

type visitState int

const (
	stateUnvisited visitState = iota
	stateInProgress
	stateDone
)

// RepositoryGraph stores repositories in an arena; Dependents edges are
// indices into Repos and point from producer to consumer.
type RepositoryGraph struct {
	Repos     []*types.Repository
	producers map[string]int
}

// BuildGraph derives produced/consumed package sets from each repository's
// manifests, links producers to consumers, rejects cycles and assigns every
// repository its longest-path rank in Order.
func BuildGraph(repos []*types.Repository) (*RepositoryGraph, error) {
	g := &RepositoryGraph{Repos: repos, producers: map[string]int{}}
	for _, repo := range repos {
		collectPackages(repo)
		repo.Order = 0
		repo.Dependents = nil
	}
	for i, repo := range repos {
		for id := range repo.Packages {
			if _, ok := g.producers[id]; !ok {
				g.producers[id] = i
			}
		}
	}
	for consumer, repo := range repos {
		seen := map[int]struct{}{}
		for id := range repo.PackageDependencies {
			producer, ok := g.producers[id]
			if !ok || producer == consumer {
				continue
			}
			if _, dup := seen[producer]; dup {
				continue
			}
			seen[producer] = struct{}{}
			repos[producer].Dependents = append(repos[producer].Dependents, consumer)
		}
	}
	for _, repo := range repos {
		sort.Ints(repo.Dependents)
	}
	if err := g.checkCycles(); err != nil {
		return nil, err
	}
	g.rank()
	return g, nil
}

// collectPackages fills Packages and PackageDependencies (lower-case ids) from
// the repository's manifests. Self-produced ids are not dependencies.
func collectPackages(repo *types.Repository) {
	if repo.Packages == nil {
		repo.Packages = map[string]struct{}{}
	}
	if repo.PackageDependencies == nil {
		repo.PackageDependencies = map[string]struct{}{}
	}
	for _, manifest := range repo.Manifests {
		if manifest.ID != "" {
			repo.Packages[strings.ToLower(manifest.ID)] = struct{}{}
		}
	}
	for _, manifest := range repo.Manifests {
		for _, group := range manifest.Groups {
			for _, dep := range group.Dependencies {
				id := strings.ToLower(dep.ID)
				if id == "" {
					continue
				}
				if _, own := repo.Packages[id]; own {
					continue
				}
				repo.PackageDependencies[id] = struct{}{}
			}
		}
	}
	for id := range repo.Packages {
		delete(repo.PackageDependencies, id)
	}
}

func (g *RepositoryGraph) checkCycles() error {
	state := make([]visitState, len(g.Repos))
	path := make([]int, 0, len(g.Repos))

	var visit func(i int) []int
	visit = func(i int) []int {
		state[i] = stateInProgress
		path = append(path, i)
		for _, next := range g.Repos[i].Dependents {
			switch state[next] {
			case stateInProgress:
				start := 0
				for pos, idx := range path {
					if idx == next {
						start = pos
						break
					}
				}
				cycle := append([]int{}, path[start:]...)
				return append(cycle, next)
			case stateUnvisited:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}
		path = path[:len(path)-1]
		state[i] = stateDone
		return nil
	}

	for i := range g.Repos {
		if state[i] != stateUnvisited {
			continue
		}
		if cycle := visit(i); cycle != nil {
			names := make([]string, len(cycle))
			for pos, idx := range cycle {
				names[pos] = g.Repos[idx].Name
			}
			return errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("repository dependency cycle detected: %s", strings.Join(names, " -> ")))
		}
	}
	return nil
}

// rank raises each consumer to at least producer+1 and re-enqueues it when its
// rank grows, so the result does not depend on discovery order.
func (g *RepositoryGraph) rank() {
	queue := make([]int, 0, len(g.Repos))
	for i := range g.Repos {
		queue = append(queue, i)
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range g.Repos[current].Dependents {
			if g.Repos[next].Order < g.Repos[current].Order+1 {
				g.Repos[next].Order = g.Repos[current].Order + 1
				queue = append(queue, next)
			}
		}
	}
}

// Sorted returns the repositories in patch order (rank, then name).
func (g *RepositoryGraph) Sorted() []*types.Repository {
	out := append([]*types.Repository{}, g.Repos...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Producer returns the repository producing packageID.
func (g *RepositoryGraph) Producer(packageID string) (*types.Repository, bool) {
	idx, ok := g.producers[strings.ToLower(packageID)]
	if !ok {
		return nil, false
	}
	return g.Repos[idx], true
}

// DependentNames lists the names of repo's direct consumers.
func (g *RepositoryGraph) DependentNames(repo *types.Repository) []string {
	names := make([]string, 0, len(repo.Dependents))
	for _, idx := range repo.Dependents {
		names = append(names, g.Repos[idx].Name)
	}
	sort.Strings(names)
	return names
}
