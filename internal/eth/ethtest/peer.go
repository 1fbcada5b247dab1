// Package ethtest provides an in-memory remote peer speaking the eth
// protocol, for tests and simulations.
package ethtest

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tendermint/chainsync/internal/eth"
	"github.com/tendermint/chainsync/libs/log"
	"github.com/tendermint/chainsync/types"
)

// ErrDisconnected is returned by Run once either side dropped the
// connection.
var ErrDisconnected = errors.New("disconnected")

// Receiver is the local side of the connection.
type Receiver interface {
	Receive(msg eth.Message) error
}

// Behavior tweaks how a RemotePeer answers requests.
type Behavior struct {
	// Latency delays every response.
	Latency time.Duration
	// Stall makes the peer ignore header and body requests.
	Stall bool
	// CorruptBodies makes the peer answer body requests with bodies that do
	// not match the requested headers.
	CorruptBodies bool
	// MaxHeaders caps the number of headers per response, 0 means no cap.
	MaxHeaders int
	// DisconnectAfter drops the connection after that many responses, 0
	// means never.
	DisconnectAfter int
}

// RemotePeer serves a chain to a local eth handler. It implements eth.Sender
// for the local handler: messages sent to it are answered from Run.
type RemotePeer struct {
	logger   log.Logger
	id       types.NodeID
	behavior Behavior

	networkID uint64
	version   eth.Version

	inbox chan eth.Message
	done  chan struct{}
	once  sync.Once

	mtx      sync.Mutex
	chain    []*types.Block
	index    map[types.Hash]*types.Block
	received []eth.Message
	reason   error
	answered int

	dropped uint64 // atomic
}

// NewRemotePeer returns a peer serving chain, which must start at genesis.
func NewRemotePeer(
	logger log.Logger,
	id types.NodeID,
	networkID uint64,
	version eth.Version,
	chain []*types.Block,
	behavior Behavior,
) *RemotePeer {
	p := &RemotePeer{
		logger:    logger.With("remote", id),
		id:        id,
		behavior:  behavior,
		networkID: networkID,
		version:   version,
		index:     make(map[types.Hash]*types.Block, len(chain)),
		inbox:     make(chan eth.Message, 64),
		done:      make(chan struct{}),
	}
	p.Extend(chain...)
	return p
}

func (p *RemotePeer) ID() types.NodeID { return p.id }

// TrySend implements eth.Sender.
func (p *RemotePeer) TrySend(msg eth.Message) bool {
	select {
	case <-p.done:
		return false
	default:
	}

	select {
	case p.inbox <- msg:
		return true
	default:
		atomic.AddUint64(&p.dropped, 1)
		return false
	}
}

// Disconnect implements eth.Sender.
func (p *RemotePeer) Disconnect(reason error) {
	p.once.Do(func() {
		p.mtx.Lock()
		p.reason = reason
		p.mtx.Unlock()
		close(p.done)
	})
}

// Done is closed once the connection was dropped.
func (p *RemotePeer) Done() <-chan struct{} { return p.done }

// Reason returns the error the connection was dropped with.
func (p *RemotePeer) Reason() error {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.reason
}

// Received returns the messages the local side sent so far.
func (p *RemotePeer) Received() []eth.Message {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	out := make([]eth.Message, len(p.received))
	copy(out, p.received)
	return out
}

// Extend appends blocks to the served chain.
func (p *RemotePeer) Extend(blocks ...*types.Block) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.chain = append(p.chain, blocks...)
	for _, b := range blocks {
		p.index[b.Hash()] = b
	}
}

// Status returns the status message of the peer.
func (p *RemotePeer) Status() *eth.StatusMessage {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	td := new(big.Int)
	for _, b := range p.chain {
		td.Add(td, new(big.Int).SetUint64(b.Difficulty()))
	}
	return &eth.StatusMessage{
		ProtocolVersion: p.version,
		NetworkID:       p.networkID,
		TotalDifficulty: td,
		BestHash:        p.chain[len(p.chain)-1].Hash(),
		GenesisHash:     p.chain[0].Hash(),
	}
}

// Run sends the status to local, then answers its requests until ctx is
// canceled or the connection is dropped.
func (p *RemotePeer) Run(ctx context.Context, local Receiver) error {
	if err := p.deliver(ctx, local, p.Status()); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.done:
			return p.disconnectErr()
		case msg := <-p.inbox:
			p.record(msg)

			resp := p.respond(msg)
			if resp == nil {
				continue
			}
			if err := p.deliver(ctx, local, resp); err != nil {
				return err
			}

			p.mtx.Lock()
			p.answered++
			drop := p.behavior.DisconnectAfter > 0 && p.answered >= p.behavior.DisconnectAfter
			p.mtx.Unlock()
			if drop {
				p.logger.Debug("dropping connection")
				p.Disconnect(ErrDisconnected)
			}
		}
	}
}

func (p *RemotePeer) disconnectErr() error {
	if reason := p.Reason(); reason != nil && !errors.Is(reason, ErrDisconnected) {
		return reason
	}
	return ErrDisconnected
}

func (p *RemotePeer) deliver(ctx context.Context, local Receiver, msg eth.Message) error {
	if p.behavior.Latency > 0 {
		timer := time.NewTimer(p.behavior.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil
		case <-p.done:
			return p.disconnectErr()
		case <-timer.C:
		}
	}

	if err := local.Receive(msg); err != nil {
		// the local handler already asked to disconnect
		return err
	}
	return nil
}

func (p *RemotePeer) record(msg eth.Message) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.received = append(p.received, msg)
}

func (p *RemotePeer) respond(msg eth.Message) eth.Message {
	switch msg := msg.(type) {
	case *eth.GetBlockHeadersMessage:
		if p.behavior.Stall {
			return nil
		}
		return p.headers(msg)
	case *eth.GetBlockBodiesMessage:
		if p.behavior.Stall {
			return nil
		}
		return p.bodies(msg)
	default:
		return nil
	}
}

func (p *RemotePeer) headers(req *eth.GetBlockHeadersMessage) *eth.BlockHeadersMessage {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	amount := req.Amount
	if max := uint64(p.behavior.MaxHeaders); max > 0 && amount > max {
		amount = max
	}

	resp := &eth.BlockHeadersMessage{RequestID: req.RequestID}
	number := req.Origin
	for i := uint64(0); i < amount && number < uint64(len(p.chain)); i++ {
		hdr := p.chain[number].Header
		resp.Headers = append(resp.Headers, &hdr)

		step := req.Skip + 1
		if req.Reverse {
			if number < step {
				break
			}
			number -= step
		} else {
			number += step
		}
	}
	return resp
}

func (p *RemotePeer) bodies(req *eth.GetBlockBodiesMessage) *eth.BlockBodiesMessage {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	resp := &eth.BlockBodiesMessage{RequestID: req.RequestID}
	for _, hash := range req.Hashes {
		block, ok := p.index[hash]
		if !ok {
			break
		}
		body := block.Txs
		if p.behavior.CorruptBodies {
			body = append(types.Transactions{{Nonce: 1 << 62}}, body...)
		}
		resp.Bodies = append(resp.Bodies, body)
	}
	return resp
}
