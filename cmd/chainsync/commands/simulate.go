package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	dbm "github.com/tendermint/tm-db"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/tendermint/chainsync/config"
	"github.com/tendermint/chainsync/internal/blocksync"
	"github.com/tendermint/chainsync/internal/eth"
	"github.com/tendermint/chainsync/internal/eth/ethtest"
	"github.com/tendermint/chainsync/internal/store"
	"github.com/tendermint/chainsync/internal/test/factory"
	"github.com/tendermint/chainsync/libs/log"
	"github.com/tendermint/chainsync/libs/service"
	"github.com/tendermint/chainsync/types"
)

// simulation holds the parameters of the simulate command.
type simulation struct {
	peers    int
	blocks   int
	stalling int
	corrupt  int
	latency  time.Duration
	timeout  time.Duration
}

// MakeSimulateCommand returns the command syncing the local store from an
// in-memory network of remote peers serving a generated chain.
func MakeSimulateCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	var sim simulation

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Sync from an in-memory network of peers",
		Long: `Generates a chain, serves it from --peers in-memory peers and syncs the
local block store from them with the long sync strategy. The command exits
once the local head reaches --blocks.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			start := time.Now()
			height, err := runSimulation(ctx, conf, logger, sim)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "synced to height %d in %v\n", height, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().IntVar(&sim.peers, "peers", 4, "number of remote peers")
	cmd.Flags().IntVar(&sim.blocks, "blocks", 1000, "length of the served chain")
	cmd.Flags().IntVar(&sim.stalling, "stalling", 0, "number of peers ignoring requests")
	cmd.Flags().IntVar(&sim.corrupt, "corrupt", 0, "number of peers serving corrupt bodies")
	cmd.Flags().DurationVar(&sim.latency, "latency", 0, "response latency of every peer")
	cmd.Flags().DurationVar(&sim.timeout, "timeout", 5*time.Minute, "give up after this long")
	return cmd
}

func (sim simulation) validate() error {
	switch {
	case sim.peers <= 0:
		return errors.New("--peers must be positive")
	case sim.blocks <= 0:
		return errors.New("--blocks must be positive")
	case sim.stalling < 0 || sim.corrupt < 0:
		return errors.New("--stalling and --corrupt can't be negative")
	case sim.stalling+sim.corrupt >= sim.peers:
		return errors.New("at least one peer must be honest")
	}
	return nil
}

func (sim simulation) behavior(i int) ethtest.Behavior {
	b := ethtest.Behavior{Latency: sim.latency}
	switch {
	case i < sim.stalling:
		b.Stall = true
	case i < sim.stalling+sim.corrupt:
		b.CorruptBodies = true
	}
	return b
}

func runSimulation(ctx context.Context, conf *config.Config, logger log.Logger, sim simulation) (uint64, error) {
	if err := sim.validate(); err != nil {
		return 0, err
	}

	genesisHash := factory.GenesisHashHex()
	if conf.Sync.GenesisHash == "" {
		conf.Sync.GenesisHash = genesisHash
	}
	if conf.Sync.GenesisHash != genesisHash {
		return 0, fmt.Errorf("the simulated network requires genesis-hash %s", genesisHash)
	}

	runID := uuid.NewString()
	logger = logger.With("run", runID)

	metrics := blocksync.NopMetrics()
	if conf.Instrumentation.Prometheus {
		metrics = blocksync.PrometheusMetrics(conf.Instrumentation.Namespace, "run", runID)
		srv, err := startPrometheusServer(conf.Instrumentation, logger)
		if err != nil {
			return 0, err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				logger.Error("prometheus server shutdown", "err", err)
			}
		}()
	}

	blockDB, err := dbm.NewDB("blockstore", dbm.BackendType(conf.DBBackend), conf.DBDir())
	if err != nil {
		return 0, err
	}
	bs, err := store.NewBlockStore(blockDB, factory.MakeGenesis())
	if err != nil {
		return 0, err
	}
	defer bs.Close()

	reactor := blocksync.NewReactor(logger.With("module", "blocksync"), conf.Sync, bs, dbm.NewMemDB(), metrics)

	ctx, cancel := context.WithTimeout(ctx, sim.timeout)
	defer cancel()

	if err := reactor.Start(ctx); err != nil {
		return 0, err
	}
	defer func() {
		if err := reactor.Stop(); err != nil && !errors.Is(err, service.ErrAlreadyStopped) {
			logger.Error("stopping reactor", "err", err)
		}
	}()

	chain := factory.MakeChain(sim.blocks)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < sim.peers; i++ {
		id := types.NodeID(fmt.Sprintf("peer%02d", i))
		remote := ethtest.NewRemotePeer(logger, id, conf.Sync.NetworkID, eth.V63, chain, sim.behavior(i))
		h, err := reactor.AddPeer(gctx, id, eth.V63, remote)
		if err != nil {
			cancel()
			_ = g.Wait()
			return 0, err
		}

		g.Go(func() error {
			err := remote.Run(gctx, h)
			reactor.RemovePeer(id)
			if err != nil {
				logger.Info("peer disconnected", "peer", id, "reason", err)
			}
			return nil
		})
	}

	height, err := waitForHeight(ctx, logger, reactor, uint64(sim.blocks))
	cancel()
	if werr := g.Wait(); werr != nil && err == nil {
		err = werr
	}
	return height, err
}

func waitForHeight(ctx context.Context, logger log.Logger, reactor *blocksync.Reactor, target uint64) (uint64, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		height := reactor.Height()
		if height >= target {
			return height, nil
		}

		select {
		case <-ctx.Done():
			return height, fmt.Errorf("stopped at height %d of %d: %w", height, target, ctx.Err())
		case <-ticker.C:
			logger.Info("syncing",
				"height", height,
				"target", target,
				"phase", reactor.Phase(),
				"peers", reactor.Pool().Size())
		}
	}
}

func startPrometheusServer(cfg *config.InstrumentationConfig, logger log.Logger) (*http.Server, error) {
	listener, err := net.Listen("tcp", cfg.PrometheusListenAddr)
	if err != nil {
		return nil, fmt.Errorf("prometheus listener: %w", err)
	}
	if cfg.MaxOpenConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.MaxOpenConnections)
	}

	srv := &http.Server{
		Handler: promhttp.InstrumentMetricHandler(
			prometheus.DefaultRegisterer, promhttp.HandlerFor(
				prometheus.DefaultGatherer,
				promhttp.HandlerOpts{MaxRequestsInFlight: cfg.MaxOpenConnections},
			),
		),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("prometheus server", "err", err)
		}
	}()
	return srv, nil
}
