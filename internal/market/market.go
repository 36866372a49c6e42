// Package market holds the in-memory token graph the Quoter consults to
// resolve RFQ tokens and find a route between them.
package market

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/liquorice-gateway/gateway/internal/chain"
)

// State is the market-wide token graph. Topology (nodes and edges) is built
// once at startup and never mutated afterward, so the read lock that lookups
// and path queries take is never contended by a writer after startup; only
// the token balance fields mutate, and those are updated atomically by the
// Inventory Tracker independently of this type.
type State struct {
	mu       sync.RWMutex
	tokens   map[chain.TokenKey]*chain.Token
	edges    map[chain.TokenKey]map[chain.TokenKey]struct{}
	byChain  map[int][]*chain.Token
	sealed   bool
}

// New creates an empty market state.
func New() *State {
	return &State{
		tokens:  make(map[chain.TokenKey]*chain.Token),
		edges:   make(map[chain.TokenKey]map[chain.TokenKey]struct{}),
		byChain: make(map[int][]*chain.Token),
	}
}

// AddToken registers a token as a graph node. Safe to call only during
// startup, before the graph is sealed.
func (s *State) AddToken(t *chain.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := t.Key()
	if _, ok := s.tokens[key]; ok {
		return
	}
	s.tokens[key] = t
	s.edges[key] = make(map[chain.TokenKey]struct{})
	s.byChain[key.ChainID] = append(s.byChain[key.ChainID], t)
}

// AddEdge connects two tokens with an undirected swap-pair edge. Both
// endpoints must already be registered via AddToken. Cross-chain edges are
// never created by the static seeding in this gateway, but AddEdge itself
// does not forbid them — callers are responsible for staying chain-scoped.
func (s *State) AddEdge(a, b *chain.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ka, kb := a.Key(), b.Key()
	if _, ok := s.edges[ka]; !ok {
		return
	}
	if _, ok := s.edges[kb]; !ok {
		return
	}
	s.edges[ka][kb] = struct{}{}
	s.edges[kb][ka] = struct{}{}
}

// Seal marks the graph topology as frozen. After Seal, AddToken/AddEdge
// should no longer be called; this is advisory bookkeeping, not enforced.
func (s *State) Seal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sealed = true
}

// TokensOf returns all tokens registered for the given chain id.
func (s *State) TokensOf(chainID int) []*chain.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*chain.Token, len(s.byChain[chainID]))
	copy(out, s.byChain[chainID])
	return out
}

// GetToken looks up a token by chain id and address, case-insensitively on
// the address.
func (s *State) GetToken(chainID int, address common.Address) *chain.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := chain.TokenKey{ChainID: chainID, Address: strings.ToLower(address.Hex())}
	return s.tokens[key]
}

// ShortestPath returns an unweighted shortest path (by hop count) from
// source to target, inclusive of both endpoints, or nil if either endpoint
// is absent from the graph or no path exists.
func (s *State) ShortestPath(source, target *chain.Token) []*chain.Token {
	if source == nil || target == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	srcKey, dstKey := source.Key(), target.Key()
	if _, ok := s.edges[srcKey]; !ok {
		return nil
	}
	if _, ok := s.edges[dstKey]; !ok {
		return nil
	}
	if srcKey == dstKey {
		return []*chain.Token{s.tokens[srcKey]}
	}

	prev := map[chain.TokenKey]chain.TokenKey{}
	visited := map[chain.TokenKey]bool{srcKey: true}
	queue := []chain.TokenKey{srcKey}

	found := false
	for len(queue) > 0 && !found {
		cur := queue[0]
		queue = queue[1:]
		for next := range s.edges[cur] {
			if visited[next] {
				continue
			}
			visited[next] = true
			prev[next] = cur
			if next == dstKey {
				found = true
				break
			}
			queue = append(queue, next)
		}
	}

	if !visited[dstKey] {
		return nil
	}

	// Walk back from target to source, then reverse.
	path := []chain.TokenKey{dstKey}
	for path[len(path)-1] != srcKey {
		path = append(path, prev[path[len(path)-1]])
	}
	out := make([]*chain.Token, len(path))
	for i, k := range path {
		out[len(path)-1-i] = s.tokens[k]
	}
	return out
}
