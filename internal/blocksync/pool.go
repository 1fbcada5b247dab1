package blocksync

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/mroth/weightedrand"

	"github.com/tendermint/chainsync/config"
	"github.com/tendermint/chainsync/internal/eth"
	"github.com/tendermint/chainsync/libs/log"
	"github.com/tendermint/chainsync/types"
)

var _ PeerPool = (*Pool)(nil)

// difficultyReporter is implemented by peers knowing the total difficulty of
// their chain.
type difficultyReporter interface {
	TotalDifficulty() *big.Int
}

// Pool is the set of peers taking part in synchronization. It is safe for
// concurrent use.
type Pool struct {
	logger   log.Logger
	election string

	mtx      sync.RWMutex
	peers    map[types.NodeID]eth.Eth
	order    []types.NodeID
	syncDone bool
}

// NewPool returns an empty pool electing masters according to election,
// one of config.MasterElectionBest or config.MasterElectionWeighted.
func NewPool(logger log.Logger, election string) *Pool {
	return &Pool{
		logger:   logger.With("module", "pool"),
		election: election,
		peers:    make(map[types.NodeID]eth.Eth),
	}
}

// AddPeer adds peer to the pool and tells it whether the long sync is done.
func (p *Pool) AddPeer(peer eth.Eth) error {
	p.mtx.Lock()
	id := peer.ID()
	if _, ok := p.peers[id]; ok {
		p.mtx.Unlock()
		return fmt.Errorf("%w: %v", ErrPeerAlreadyAdded, id)
	}
	p.peers[id] = peer
	p.order = append(p.order, id)
	syncDone := p.syncDone
	p.mtx.Unlock()

	peer.OnSyncDone(syncDone)
	p.logger.Debug("added peer", "peer", id, "version", peer.Version())
	return nil
}

// RemovePeer removes the peer and shuts it down. Removing an unknown peer is
// a no-op.
func (p *Pool) RemovePeer(id types.NodeID) {
	p.mtx.Lock()
	peer, ok := p.peers[id]
	if ok {
		delete(p.peers, id)
		for i, pid := range p.order {
			if pid == id {
				p.order = append(p.order[:i], p.order[i+1:]...)
				break
			}
		}
	}
	p.mtx.Unlock()

	if !ok {
		return
	}
	peer.LogSyncStats()
	peer.OnShutdown()
	p.logger.Debug("removed peer", "peer", id)
}

// Get returns the peer with the given ID, nil if it's not in the pool.
func (p *Pool) Get(id types.NodeID) eth.Eth {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	return p.peers[id]
}

// Size returns the number of peers.
func (p *Pool) Size() int {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	return len(p.peers)
}

// Peers implements PeerPool. Peers are returned in the order they were
// added.
func (p *Pool) Peers() []eth.Eth {
	p.mtx.RLock()
	defer p.mtx.RUnlock()

	peers := make([]eth.Eth, 0, len(p.order))
	for _, id := range p.order {
		peers = append(peers, p.peers[id])
	}
	return peers
}

// Master implements PeerPool. Only idle peers that passed the status
// handshake are eligible.
func (p *Pool) Master() eth.Eth {
	var eligible []eth.Eth
	for _, peer := range p.Peers() {
		if peer.HasStatusSucceeded() && peer.IsIdle() {
			eligible = append(eligible, peer)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	if p.election == config.MasterElectionWeighted {
		master, err := pickWeighted(eligible)
		if err == nil {
			return master
		}
		p.logger.Error("weighted election failed, electing the best peer", "err", err)
	}
	return pickBest(eligible)
}

// pickBest returns the peer with the highest total difficulty, the first one
// on ties.
func pickBest(peers []eth.Eth) eth.Eth {
	best, bestTD := peers[0], totalDifficulty(peers[0])
	for _, peer := range peers[1:] {
		if td := totalDifficulty(peer); td.Cmp(bestTD) > 0 {
			best, bestTD = peer, td
		}
	}
	return best
}

// maxWeightBits bounds each election weight. The weights of a pool are
// summed into an int by weightedrand.
const maxWeightBits = 24

// pickWeighted returns a random peer, weighted by total difficulty.
func pickWeighted(peers []eth.Eth) (eth.Eth, error) {
	tds := make([]*big.Int, len(peers))
	for i, peer := range peers {
		tds[i] = totalDifficulty(peer)
	}

	weights := electionWeights(tds)
	choices := make([]weightedrand.Choice, len(peers))
	for i, peer := range peers {
		choices[i] = weightedrand.NewChoice(peer, weights[i])
	}

	chooser, err := weightedrand.NewChooser(choices...)
	if err != nil {
		return nil, err
	}
	return chooser.Pick().(eth.Eth), nil
}

// electionWeights scales total difficulties down to maxWeightBits, keeping
// their ratios. Every peer weighs at least one.
func electionWeights(tds []*big.Int) []uint {
	maxBits := 0
	for _, td := range tds {
		if bits := td.BitLen(); bits > maxBits {
			maxBits = bits
		}
	}
	shift := uint(0)
	if maxBits > maxWeightBits {
		shift = uint(maxBits - maxWeightBits)
	}

	weights := make([]uint, len(tds))
	for i, td := range tds {
		weights[i] = uint(new(big.Int).Rsh(td, shift).Uint64()) + 1
	}
	return weights
}

func totalDifficulty(peer eth.Eth) *big.Int {
	if r, ok := peer.(difficultyReporter); ok {
		if td := r.TotalDifficulty(); td != nil {
			return td
		}
	}
	return new(big.Int)
}

// ChangeState implements PeerPool.
func (p *Pool) ChangeState(state eth.SyncState) {
	p.logger.Debug("broadcasting state", "state", state)
	for _, peer := range p.Peers() {
		peer.ChangeState(state)
	}
}

// NotifySyncDone tells every peer, and the peers added later, whether the
// long sync is done.
func (p *Pool) NotifySyncDone(done bool) {
	p.mtx.Lock()
	p.syncDone = done
	p.mtx.Unlock()

	for _, peer := range p.Peers() {
		peer.OnSyncDone(done)
	}
}

// LogSyncStats logs the statistics of every peer.
func (p *Pool) LogSyncStats() {
	for _, peer := range p.Peers() {
		peer.LogSyncStats()
	}
}
