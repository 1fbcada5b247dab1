package eth

import (
	"context"
	"fmt"
	"math/big"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/tendermint/chainsync/config"
	"github.com/tendermint/chainsync/libs/log"
	"github.com/tendermint/chainsync/libs/service"
	"github.com/tendermint/chainsync/types"
)

var _ Eth = (*Handler)(nil)

type headersRequest struct {
	id     uint64
	origin uint64
	amount uint64
	sentAt time.Time
}

type bodiesRequest struct {
	id      uint64
	headers []*types.Header
	sentAt  time.Time
}

// HandlerOption sets an optional parameter on the Handler.
type HandlerOption func(*Handler)

// WithChainReader lets the handler build its status from, and serve header
// and body requests out of, the local chain.
func WithChainReader(chain ChainReader) HandlerOption {
	return func(h *Handler) { h.chain = chain }
}

// WithTxSink sets the function receiving transactions relayed by the peer.
func WithTxSink(sink func(types.NodeID, types.Transactions)) HandlerOption {
	return func(h *Handler) { h.txSink = sink }
}

// WithBlockSink sets the function receiving blocks announced by the peer.
func WithBlockSink(sink func(*types.BlockWrapper)) HandlerOption {
	return func(h *Handler) { h.blockSink = sink }
}

// WithHashSink sets the function receiving block hashes announced by the peer.
func WithHashSink(sink func(types.NodeID, []BlockAnnouncement)) HandlerOption {
	return func(h *Handler) { h.hashSink = sink }
}

// Handler is the eth protocol handler of a single connected peer. Inbound
// messages are fed to Receive by the transport; outbound messages go through
// the Sender. While running, the handler issues header and body requests
// according to its sync state.
type Handler struct {
	service.BaseService
	logger log.Logger

	peerID    types.NodeID
	version   Version
	cfg       *config.SyncConfig
	networkID uint64
	genesis   types.Hash

	sender    Sender
	queue     HeaderQueue
	chain     ChainReader
	txSink    func(types.NodeID, types.Transactions)
	blockSink func(*types.BlockWrapper)
	hashSink  func(types.NodeID, []BlockAnnouncement)

	stats *SyncStatistics

	statusSent      uint32 // atomic
	statusPassed    uint32 // atomic
	statusSucceeded uint32 // atomic
	txsDisabled     uint32 // atomic
	syncDone        uint32 // atomic
	shutdown        uint32 // atomic

	knownTxs    *lru.Cache
	knownBlocks *lru.Cache

	mtx           sync.Mutex
	state         SyncState
	bestHash      types.Hash
	td            *big.Int
	lastRequestID uint64
	headersReq    *headersRequest
	gapReq        *headersRequest
	bodiesReq     *bodiesRequest
}

// NewHandler returns a handler for peerID speaking version.
func NewHandler(
	logger log.Logger,
	cfg *config.SyncConfig,
	peerID types.NodeID,
	version Version,
	sender Sender,
	queue HeaderQueue,
	options ...HandlerOption,
) (*Handler, error) {
	genesis, err := cfg.Genesis()
	if err != nil {
		return nil, err
	}
	knownTxs, err := lru.New(cfg.KnownTxsCacheSize)
	if err != nil {
		return nil, fmt.Errorf("known txs cache: %w", err)
	}
	knownBlocks, err := lru.New(cfg.KnownBlocksCacheSize)
	if err != nil {
		return nil, fmt.Errorf("known blocks cache: %w", err)
	}

	h := &Handler{
		logger:      logger.With("peer", peerID),
		peerID:      peerID,
		version:     version,
		cfg:         cfg,
		networkID:   cfg.NetworkID,
		genesis:     genesis,
		sender:      sender,
		queue:       queue,
		stats:       NewSyncStatistics(),
		knownTxs:    knownTxs,
		knownBlocks: knownBlocks,
		state:       SyncStateIdle,
		td:          new(big.Int),
	}
	for _, opt := range options {
		opt(h)
	}
	h.BaseService = *service.NewBaseService(logger, "EthHandler", h)
	return h, nil
}

// OnStart sends the status message and spawns the request routine.
func (h *Handler) OnStart(ctx context.Context) error {
	h.SendStatus()
	go h.requestRoutine(ctx)
	return nil
}

// OnStop releases the peer state.
func (h *Handler) OnStop() {
	h.OnShutdown()
}

func (h *Handler) ID() types.NodeID { return h.peerID }

func (h *Handler) Version() Version { return h.version }

func (h *Handler) Stats() *SyncStatistics { return h.stats }

func (h *Handler) HasStatusPassed() bool { return atomic.LoadUint32(&h.statusPassed) == 1 }

func (h *Handler) HasStatusSucceeded() bool { return atomic.LoadUint32(&h.statusSucceeded) == 1 }

// BestHash returns the best block hash advertised by the peer.
func (h *Handler) BestHash() types.Hash {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return h.bestHash
}

// TotalDifficulty returns the total difficulty advertised by the peer.
func (h *Handler) TotalDifficulty() *big.Int {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return new(big.Int).Set(h.td)
}

// State returns the current sync state.
func (h *Handler) State() SyncState {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return h.state
}

func (h *Handler) IsHashRetrievingDone() bool { return h.State() == SyncStateDoneHashRetrieving }

func (h *Handler) IsHashRetrieving() bool { return h.State() == SyncStateHashRetrieving }

func (h *Handler) IsIdle() bool { return h.State() == SyncStateIdle }

// ChangeState implements Eth. Entering HASH_RETRIEVING from another state
// resets the statistics; leaving it revokes the pending header request, so
// its late response is discarded.
func (h *Handler) ChangeState(state SyncState) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if h.state == state {
		return
	}

	h.logger.Debug("change state", "from", h.state, "to", state)
	prev := h.state
	h.state = state

	if state == SyncStateHashRetrieving {
		h.stats.Reset()
	}
	if prev == SyncStateHashRetrieving {
		h.headersReq = nil
	}
}

// SendStatus implements Eth.
func (h *Handler) SendStatus() {
	if !atomic.CompareAndSwapUint32(&h.statusSent, 0, 1) {
		return
	}

	msg := &StatusMessage{
		ProtocolVersion: h.version,
		NetworkID:       h.networkID,
		TotalDifficulty: new(big.Int),
		BestHash:        h.genesis,
		GenesisHash:     h.genesis,
	}
	if h.chain != nil {
		if head := h.chain.Head(); head != nil {
			msg.BestHash = head.Hash()
			msg.TotalDifficulty = h.chain.TotalDifficulty()
		}
	}

	if !h.sender.TrySend(msg) {
		h.logger.Error("failed to send status")
		atomic.StoreUint32(&h.statusSent, 0)
	}
}

func (h *Handler) DisableTransactions() { atomic.StoreUint32(&h.txsDisabled, 1) }

func (h *Handler) EnableTransactions() { atomic.StoreUint32(&h.txsDisabled, 0) }

func (h *Handler) transactionsEnabled() bool { return atomic.LoadUint32(&h.txsDisabled) == 0 }

// SendTransactions implements Eth. Transactions the peer already knows are
// not sent again.
func (h *Handler) SendTransactions(txs types.Transactions) {
	if !h.transactionsEnabled() || !h.HasStatusSucceeded() {
		return
	}

	unknown := make(types.Transactions, 0, len(txs))
	for _, tx := range txs {
		hash := tx.Hash()
		if ok, _ := h.knownTxs.ContainsOrAdd(hash, struct{}{}); ok {
			continue
		}
		unknown = append(unknown, tx)
	}
	if len(unknown) == 0 {
		return
	}

	if !h.sender.TrySend(&TransactionsMessage{Txs: unknown}) {
		h.logger.Debug("dropped transactions", "count", len(unknown))
	}
}

// SendNewBlock implements Eth. Until the long sync is done only the hash is
// announced.
func (h *Handler) SendNewBlock(block *types.Block) {
	if atomic.LoadUint32(&h.syncDone) == 0 {
		h.SendNewBlockHashes(block)
		return
	}
	if !h.HasStatusSucceeded() {
		return
	}
	if ok, _ := h.knownBlocks.ContainsOrAdd(block.Hash(), struct{}{}); ok {
		return
	}

	td := new(big.Int)
	if h.chain != nil {
		td = h.chain.TotalDifficulty()
	}
	if !h.sender.TrySend(&NewBlockMessage{Block: block, TotalDifficulty: td}) {
		h.logger.Debug("dropped new block", "number", block.Number())
	}
}

// SendNewBlockHashes implements Eth.
func (h *Handler) SendNewBlockHashes(block *types.Block) {
	if !h.HasStatusSucceeded() {
		return
	}
	hash := block.Hash()
	if ok, _ := h.knownBlocks.ContainsOrAdd(hash, struct{}{}); ok {
		return
	}

	msg := &NewBlockHashesMessage{
		Announcements: []BlockAnnouncement{{Hash: hash, Number: block.Number()}},
	}
	if !h.sender.TrySend(msg) {
		h.logger.Debug("dropped block announcement", "number", block.Number())
	}
}

// OnSyncDone implements Eth. Transaction relay is disabled while the long
// sync runs.
func (h *Handler) OnSyncDone(done bool) {
	if done {
		atomic.StoreUint32(&h.syncDone, 1)
		h.EnableTransactions()
	} else {
		atomic.StoreUint32(&h.syncDone, 0)
		h.DisableTransactions()
	}
}

// RecoverGap implements Eth. It asks the peer for the headers between the
// last queued header and the parent of block. Only one gap request is in flight at a
// time; further calls are ignored until it completes or times out.
func (h *Handler) RecoverGap(block *types.BlockWrapper) {
	if block == nil || block.Block == nil || !h.HasStatusSucceeded() {
		return
	}
	if atomic.LoadUint32(&h.shutdown) == 1 {
		return
	}

	next := h.queue.NextHeaderNumber()
	number := block.Number()
	if number <= next {
		return
	}

	amount := number - next
	if max := uint64(h.cfg.MaxHeadersPerRequest); amount > max {
		amount = max
	}

	h.mtx.Lock()
	if h.gapReq != nil {
		h.mtx.Unlock()
		return
	}
	req := &headersRequest{
		id:     h.nextRequestID(),
		origin: next,
		amount: amount,
		sentAt: time.Now(),
	}
	h.gapReq = req
	h.mtx.Unlock()

	h.logger.Debug("recovering gap", "from", req.origin, "amount", req.amount, "block", number)

	msg := &GetBlockHeadersMessage{RequestID: req.id, Origin: req.origin, Amount: req.amount}
	if !h.sender.TrySend(msg) {
		h.mtx.Lock()
		if h.gapReq == req {
			h.gapReq = nil
		}
		h.mtx.Unlock()
	}
}

// OnShutdown implements Eth. Headers polled for a pending body request are
// returned to the queue.
func (h *Handler) OnShutdown() {
	if !atomic.CompareAndSwapUint32(&h.shutdown, 0, 1) {
		return
	}

	h.mtx.Lock()
	var returned []*types.Header
	if h.bodiesReq != nil {
		returned = h.bodiesReq.headers
	}
	h.headersReq = nil
	h.gapReq = nil
	h.bodiesReq = nil
	h.mtx.Unlock()

	if len(returned) > 0 {
		h.queue.ReturnHeaders(returned)
	}
	h.knownTxs.Purge()
	h.knownBlocks.Purge()

	if h.IsRunning() {
		if err := h.Stop(); err != nil {
			h.logger.Debug("stopping handler", "err", err)
		}
	}
	h.logger.Debug("peer shut down")
}

// LogSyncStats implements Eth.
func (h *Handler) LogSyncStats() {
	h.logger.Info(
		"peer sync stats",
		"state", h.State(),
		"bunches", h.stats.HeaderBunchesCount(),
		"headers", h.stats.HeadersCount(),
		"blocks", h.stats.BlocksCount(),
		"empty", h.stats.EmptyResponsesCount(),
		"timeouts", h.stats.TimeoutsCount(),
	)
}

// Receive processes a message received from the peer. A returned error is a
// protocol violation; the peer has already been asked to disconnect.
func (h *Handler) Receive(msg Message) (err error) {
	defer func() {
		if e := recover(); e != nil {
			err = fmt.Errorf("panic in processing message: %v", e)
			h.logger.Error(
				"recovering from processing message panic",
				"err", err,
				"stack", string(debug.Stack()),
			)
		}
		if err != nil {
			h.logger.Error("failed to process message", "msg", fmt.Sprintf("%T", msg), "err", err)
			h.sender.Disconnect(err)
		}
	}()

	if atomic.LoadUint32(&h.shutdown) == 1 {
		return nil
	}

	if status, ok := msg.(*StatusMessage); ok {
		return h.handleStatus(status)
	}
	if !h.HasStatusSucceeded() {
		return fmt.Errorf("%w: %T", ErrNoStatus, msg)
	}

	switch msg := msg.(type) {
	case *BlockHeadersMessage:
		return h.handleBlockHeaders(msg)
	case *BlockBodiesMessage:
		return h.handleBlockBodies(msg)
	case *GetBlockHeadersMessage:
		return h.serveHeaders(msg)
	case *GetBlockBodiesMessage:
		return h.serveBodies(msg)
	case *TransactionsMessage:
		h.handleTransactions(msg)
	case *NewBlockHashesMessage:
		h.handleNewBlockHashes(msg)
	case *NewBlockMessage:
		return h.handleNewBlock(msg)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownMessage, msg)
	}
	return nil
}

func (h *Handler) handleStatus(msg *StatusMessage) error {
	if !atomic.CompareAndSwapUint32(&h.statusPassed, 0, 1) {
		return ErrDuplicateStatus
	}

	switch {
	case msg.NetworkID != h.networkID:
		return fmt.Errorf("%w: network ID %d, expected %d", ErrIncompatiblePeer, msg.NetworkID, h.networkID)
	case msg.GenesisHash != h.genesis:
		return fmt.Errorf("%w: genesis %v", ErrIncompatiblePeer, msg.GenesisHash.ShortString())
	case msg.ProtocolVersion != h.version:
		return fmt.Errorf("%w: version %v, expected %v", ErrIncompatiblePeer, msg.ProtocolVersion, h.version)
	}

	h.mtx.Lock()
	h.bestHash = msg.BestHash
	if msg.TotalDifficulty != nil {
		h.td = new(big.Int).Set(msg.TotalDifficulty)
	}
	h.mtx.Unlock()

	atomic.StoreUint32(&h.statusSucceeded, 1)
	h.logger.Debug("status succeeded", "best", msg.BestHash.ShortString(), "td", msg.TotalDifficulty)
	return nil
}

// checkRequestID returns an error if id was never issued.
func (h *Handler) checkRequestID(id uint64) error {
	if id == 0 || id > h.lastRequestID {
		return fmt.Errorf("%w: request %d was never issued", ErrUnexpectedResponse, id)
	}
	return nil
}

func (h *Handler) handleBlockHeaders(msg *BlockHeadersMessage) error {
	h.mtx.Lock()
	if err := h.checkRequestID(msg.RequestID); err != nil {
		h.mtx.Unlock()
		return err
	}
	if h.bodiesReq != nil && h.bodiesReq.id == msg.RequestID {
		h.mtx.Unlock()
		return fmt.Errorf("%w: headers for a body request", ErrUnexpectedResponse)
	}

	var (
		req *headersRequest
		gap bool
	)
	switch {
	case h.headersReq != nil && h.headersReq.id == msg.RequestID:
		req = h.headersReq
		h.headersReq = nil
	case h.gapReq != nil && h.gapReq.id == msg.RequestID:
		req, gap = h.gapReq, true
		h.gapReq = nil
	}
	bestHash := h.bestHash
	h.mtx.Unlock()

	if req == nil {
		h.logger.Debug("discarding stale headers", "request", msg.RequestID, "count", len(msg.Headers))
		return nil
	}

	if err := validateHeaders(req, msg.Headers); err != nil {
		return err
	}

	if gap {
		if len(msg.Headers) == 0 {
			return nil
		}
		if err := h.queue.AddHeaders(h.peerID, msg.Headers); err != nil {
			h.logger.Info("gap headers rejected", "err", err)
		}
		return nil
	}

	h.stats.AddHeaders(len(msg.Headers))
	if len(msg.Headers) == 0 {
		h.stats.AddEmptyResponse()
	} else if err := h.queue.AddHeaders(h.peerID, msg.Headers); err != nil {
		return fmt.Errorf("adding headers: %w", err)
	}

	done := len(msg.Headers) == 0 || msg.Headers[len(msg.Headers)-1].Hash() == bestHash
	if done {
		h.mtx.Lock()
		if h.state == SyncStateHashRetrieving {
			h.logger.Debug("header retrieval done", "headers", h.stats.HeadersCount())
			h.state = SyncStateDoneHashRetrieving
		}
		h.mtx.Unlock()
	}
	return nil
}

func validateHeaders(req *headersRequest, headers []*types.Header) error {
	if uint64(len(headers)) > req.amount {
		return fmt.Errorf("%w: got %d headers, asked for %d", ErrInvalidHeaders, len(headers), req.amount)
	}
	for i, hdr := range headers {
		if hdr == nil {
			return fmt.Errorf("%w: nil header at %d", ErrInvalidHeaders, i)
		}
		if i == 0 {
			if hdr.Number != req.origin {
				return fmt.Errorf("%w: first header is #%d, asked for #%d", ErrInvalidHeaders, hdr.Number, req.origin)
			}
			continue
		}
		prev := headers[i-1]
		if hdr.Number != prev.Number+1 || hdr.ParentHash != prev.Hash() {
			return fmt.Errorf("%w: header #%d does not follow #%d", ErrInvalidHeaders, hdr.Number, prev.Number)
		}
	}
	return nil
}

func (h *Handler) handleBlockBodies(msg *BlockBodiesMessage) error {
	h.mtx.Lock()
	if err := h.checkRequestID(msg.RequestID); err != nil {
		h.mtx.Unlock()
		return err
	}
	if (h.headersReq != nil && h.headersReq.id == msg.RequestID) ||
		(h.gapReq != nil && h.gapReq.id == msg.RequestID) {
		h.mtx.Unlock()
		return fmt.Errorf("%w: bodies for a header request", ErrUnexpectedResponse)
	}
	req := h.bodiesReq
	if req == nil || req.id != msg.RequestID {
		h.mtx.Unlock()
		h.logger.Debug("discarding stale bodies", "request", msg.RequestID, "count", len(msg.Bodies))
		return nil
	}
	h.bodiesReq = nil
	h.mtx.Unlock()

	if len(msg.Bodies) > len(req.headers) {
		h.queue.ReturnHeaders(req.headers)
		return fmt.Errorf("%w: got %d bodies, asked for %d", ErrBodyMismatch, len(msg.Bodies), len(req.headers))
	}

	blocks := make([]*types.Block, 0, len(msg.Bodies))
	for i, body := range msg.Bodies {
		block := &types.Block{Header: *req.headers[i], Txs: body}
		if err := block.ValidateBasic(); err != nil {
			h.queue.ReturnHeaders(req.headers)
			return fmt.Errorf("%w: block #%d: %v", ErrBodyMismatch, block.Number(), err)
		}
		blocks = append(blocks, block)
	}

	if rest := req.headers[len(blocks):]; len(rest) > 0 {
		h.queue.ReturnHeaders(rest)
	}
	if len(blocks) == 0 {
		h.stats.AddEmptyResponse()
		return nil
	}

	h.stats.AddBlocks(len(blocks))
	if err := h.queue.AddBlocks(h.peerID, blocks); err != nil {
		return fmt.Errorf("adding blocks: %w", err)
	}
	return nil
}

func (h *Handler) serveHeaders(msg *GetBlockHeadersMessage) error {
	resp := &BlockHeadersMessage{RequestID: msg.RequestID}

	amount := msg.Amount
	if max := uint64(h.cfg.MaxHeadersPerRequest); amount > max {
		amount = max
	}
	if h.chain != nil {
		number := msg.Origin
		for i := uint64(0); i < amount; i++ {
			block := h.chain.LoadBlock(number)
			if block == nil {
				break
			}
			hdr := block.Header
			resp.Headers = append(resp.Headers, &hdr)

			step := msg.Skip + 1
			if msg.Reverse {
				if number < step {
					break
				}
				number -= step
			} else {
				number += step
			}
		}
	}

	if !h.sender.TrySend(resp) {
		h.logger.Debug("dropped headers response", "request", msg.RequestID)
	}
	return nil
}

func (h *Handler) serveBodies(msg *GetBlockBodiesMessage) error {
	resp := &BlockBodiesMessage{RequestID: msg.RequestID}

	hashes := msg.Hashes
	if max := h.cfg.MaxBodiesPerRequest; len(hashes) > max {
		hashes = hashes[:max]
	}
	if h.chain != nil {
		for _, hash := range hashes {
			block := h.chain.LoadBlockByHash(hash)
			if block == nil {
				break
			}
			resp.Bodies = append(resp.Bodies, block.Txs)
		}
	}

	if !h.sender.TrySend(resp) {
		h.logger.Debug("dropped bodies response", "request", msg.RequestID)
	}
	return nil
}

func (h *Handler) handleTransactions(msg *TransactionsMessage) {
	for _, tx := range msg.Txs {
		h.knownTxs.Add(tx.Hash(), struct{}{})
	}
	if h.txSink != nil && h.transactionsEnabled() {
		h.txSink(h.peerID, msg.Txs)
	}
}

func (h *Handler) handleNewBlockHashes(msg *NewBlockHashesMessage) {
	if len(msg.Announcements) == 0 {
		return
	}

	best := msg.Announcements[0]
	for _, ann := range msg.Announcements {
		h.knownBlocks.Add(ann.Hash, struct{}{})
		if ann.Number > best.Number {
			best = ann
		}
	}

	h.mtx.Lock()
	h.bestHash = best.Hash
	h.mtx.Unlock()

	if h.hashSink != nil {
		h.hashSink(h.peerID, msg.Announcements)
	}
}

func (h *Handler) handleNewBlock(msg *NewBlockMessage) error {
	if msg.Block == nil {
		return fmt.Errorf("%w: new block without block", ErrUnexpectedResponse)
	}
	if err := msg.Block.ValidateBasic(); err != nil {
		return fmt.Errorf("%w: %v", ErrBodyMismatch, err)
	}

	hash := msg.Block.Hash()
	h.knownBlocks.Add(hash, struct{}{})

	h.mtx.Lock()
	h.bestHash = hash
	if msg.TotalDifficulty != nil && msg.TotalDifficulty.Cmp(h.td) > 0 {
		h.td = new(big.Int).Set(msg.TotalDifficulty)
	}
	h.mtx.Unlock()

	if h.blockSink != nil {
		bw := types.NewBlockWrapper(msg.Block, h.peerID)
		bw.NewBlock = true
		h.blockSink(bw)
	}
	return nil
}

func (h *Handler) requestRoutine(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.RequestInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.Quit():
			return
		case now := <-ticker.C:
			h.tryRequest(now)
		}
	}
}

// tryRequest expires timed out requests and issues the request the current
// sync state calls for.
func (h *Handler) tryRequest(now time.Time) {
	if !h.HasStatusSucceeded() || atomic.LoadUint32(&h.shutdown) == 1 {
		return
	}

	var (
		returned []*types.Header
		msg      Message
		reqID    uint64
		timedOut bool
	)

	h.mtx.Lock()
	timeout := h.cfg.RequestTimeout
	if h.headersReq != nil && now.Sub(h.headersReq.sentAt) > timeout {
		h.logger.Debug("headers request timed out", "request", h.headersReq.id)
		h.headersReq = nil
		h.stats.AddTimeout()
		timedOut = true
	}
	if h.gapReq != nil && now.Sub(h.gapReq.sentAt) > timeout {
		h.gapReq = nil
		h.stats.AddTimeout()
		timedOut = true
	}
	if h.bodiesReq != nil && now.Sub(h.bodiesReq.sentAt) > timeout {
		h.logger.Debug("bodies request timed out", "request", h.bodiesReq.id)
		returned = h.bodiesReq.headers
		h.bodiesReq = nil
		h.stats.AddTimeout()
		timedOut = true
	}
	if timedOut {
		h.mtx.Unlock()
		if len(returned) > 0 {
			h.queue.ReturnHeaders(returned)
		}
		h.logger.Info("peer did not answer in time", "timeout", timeout)
		h.sender.Disconnect(ErrRequestTimeout)
		return
	}

	switch h.state {
	case SyncStateHashRetrieving:
		if h.headersReq == nil {
			req := &headersRequest{
				id:     h.nextRequestID(),
				origin: h.queue.NextHeaderNumber(),
				amount: uint64(h.cfg.MaxHeadersPerRequest),
				sentAt: now,
			}
			h.headersReq = req
			reqID = req.id
			msg = &GetBlockHeadersMessage{RequestID: req.id, Origin: req.origin, Amount: req.amount}
		}

	case SyncStateBlockRetrieving:
		if h.bodiesReq == nil {
			headers := h.queue.PollHeaders(h.cfg.MaxBodiesPerRequest)
			if len(headers) == 0 && h.queue.IsHeadersEmpty() {
				h.logger.Debug("no bodies left to retrieve")
				h.state = SyncStateIdle
			}
			if len(headers) > 0 {
				req := &bodiesRequest{id: h.nextRequestID(), headers: headers, sentAt: now}
				h.bodiesReq = req
				reqID = req.id

				hashes := make([]types.Hash, len(headers))
				for i, hdr := range headers {
					hashes[i] = hdr.Hash()
				}
				msg = &GetBlockBodiesMessage{RequestID: req.id, Hashes: hashes}
			}
		}
	}
	h.mtx.Unlock()

	if msg == nil {
		return
	}
	if !h.sender.TrySend(msg) {
		h.dropRequest(reqID)
	}
}

// dropRequest forgets the pending request id, returning its headers if any.
func (h *Handler) dropRequest(id uint64) {
	var returned []*types.Header

	h.mtx.Lock()
	switch {
	case h.headersReq != nil && h.headersReq.id == id:
		h.headersReq = nil
	case h.bodiesReq != nil && h.bodiesReq.id == id:
		returned = h.bodiesReq.headers
		h.bodiesReq = nil
	}
	h.mtx.Unlock()

	if len(returned) > 0 {
		h.queue.ReturnHeaders(returned)
	}
}

// nextRequestID must be called with mtx held.
func (h *Handler) nextRequestID() uint64 {
	h.lastRequestID++
	return h.lastRequestID
}

func (h *Handler) String() string {
	return fmt.Sprintf("EthHandler{%v %v}", h.peerID.ShortString(), h.version)
}
