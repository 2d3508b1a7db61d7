package node

import (
	"fmt"
	"io"
	"net"

	metrics "github.com/rcrowley/go-metrics"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tendermint/libs/service"

	"github.com/kariy/starkmint/app"
	cfg "github.com/kariy/starkmint/config"
	"github.com/kariy/starkmint/lanes"
	"github.com/kariy/starkmint/libs/metric"
	"github.com/kariy/starkmint/rpc"
	"github.com/kariy/starkmint/server"
	"github.com/kariy/starkmint/state"
	"github.com/kariy/starkmint/store"
	"github.com/kariy/starkmint/types"
	"github.com/kariy/starkmint/validator"
)

const heightDBName = "abci"

// Provider takes a config and a logger and returns a ready to go Node.
type Provider func(*cfg.Config, log.Logger) (*Node, error)

// Node is the application process: the ABCI socket server in front of the
// lanes, the application behind them, and the optional status RPC.
type Node struct {
	service.BaseService

	// config
	config *cfg.Config

	// state
	heightStore store.HeightStore
	dbCloser    io.Closer
	blockExec   *state.BlockExecutor
	app         *app.Application

	// services
	topology   *lanes.Topology
	abciServer *server.SocketServer
	rpcServer  *rpc.Server

	// metrics
	registry  metrics.Registry
	metricSet *metric.MetricSet
}

type Option func(*Node)

// WithFatalHandler replaces the default fatal handler, which exits the process.
func WithFatalHandler(h app.FatalHandler) Option {
	return func(n *Node) {
		n.app.SetFatalHandler(h)
	}
}

// DefaultNewNode returns a node validating transactions with the
// ProgramValidator.
func DefaultNewNode(config *cfg.Config, logger log.Logger) (*Node, error) {
	return NewNode(config, validator.NewProgramValidator(), logger)
}

// OpenHeightStore opens the configured height backend. The closer is nil for
// the file backend.
func OpenHeightStore(config *cfg.Config, logger log.Logger) (store.HeightStore, io.Closer, error) {
	switch config.HeightBackend {
	case cfg.HeightBackendFile:
		return store.NewFileHeightStore(config.HeightFilePath(), logger), nil, nil
	case cfg.HeightBackendGoLevelDB:
		ds, err := store.NewDBHeightStore(heightDBName, config.DBDir(), logger)
		if err != nil {
			return nil, nil, err
		}
		return ds, ds, nil
	default:
		return nil, nil, fmt.Errorf("unknown height backend %q", config.HeightBackend)
	}
}

func NewNode(config *cfg.Config, hasher types.CanonicalHasher, logger log.Logger, options ...Option) (*Node, error) {
	if err := config.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("error in config file: %w", err)
	}

	heightStore, dbCloser, err := OpenHeightStore(config, logger.With("module", "store"))
	if err != nil {
		return nil, err
	}

	registry := metrics.NewRegistry()

	blockExec := state.NewBlockExecutor(heightStore, hasher, state.BlockExecutorWithMetrics(registry))
	blockExec.SetLogger(logger.With("module", "state"))

	application := app.NewApplication(blockExec, logger)

	topology := lanes.NewTopology(config.Lanes, application, registry)
	topology.SetLogger(logger.With("module", "lanes"))

	abciServer := server.NewSocketServer(config.ProxyApp, topology, config.ReadBufferSize)
	abciServer.SetLogger(logger.With("module", "abci-server"))

	metricSet := metric.NewMetricSet()
	if err := metricSet.SetMetrics("block", blockExec.Metric()); err != nil {
		return nil, err
	}
	if err := metricSet.SetMetrics("lanes", topology.Metric()); err != nil {
		return nil, err
	}

	node := &Node{
		config:      config,
		heightStore: heightStore,
		dbCloser:    dbCloser,
		blockExec:   blockExec,
		app:         application,
		topology:    topology,
		abciServer:  abciServer,
		registry:    registry,
		metricSet:   metricSet,
	}

	node.BaseService = *service.NewBaseService(logger, "Node", node)
	for _, option := range options {
		option(node)
	}

	return node, nil
}

func (n *Node) OnStart() error {
	// a malformed record stops the node here instead of being read as genesis
	height, err := n.heightStore.ReadOrInitialize()
	if err != nil {
		return fmt.Errorf("reading block height: %w", err)
	}
	n.Logger.Info("loaded block height", "height", height)

	if err := n.topology.Start(); err != nil {
		return err
	}

	if err := n.abciServer.Start(); err != nil {
		_ = n.topology.Stop()
		return err
	}
	n.Logger.Info("ABCI server listening", "addr", n.config.ProxyApp)

	if n.config.RPC.IsEnabled() {
		rpc.SetEnvironment(&rpc.Environment{
			State:     n.blockExec,
			MetricSet: n.metricSet,
		})
		rpcServer, err := rpc.StartServer(n.config.RPC.ListenAddress, n.Logger.With("module", "rpc-server"))
		if err != nil {
			_ = n.abciServer.Stop()
			_ = n.topology.Stop()
			return err
		}
		n.rpcServer = rpcServer
	}

	return nil
}

func (n *Node) OnStop() {
	if n.rpcServer != nil {
		if err := n.rpcServer.Stop(); err != nil {
			n.Logger.Error("Error stopping RPC server", "err", err)
		}
	}

	if err := n.abciServer.Stop(); err != nil {
		n.Logger.Error("Error stopping ABCI server", "err", err)
	}

	if err := n.topology.Stop(); err != nil {
		n.Logger.Error("Error stopping lanes", "err", err)
	}

	if n.dbCloser != nil {
		if err := n.dbCloser.Close(); err != nil {
			n.Logger.Error("Error closing height db", "err", err)
		}
	}
}

func (n *Node) Config() *cfg.Config {
	return n.config
}

func (n *Node) BlockExecutor() *state.BlockExecutor {
	return n.blockExec
}

func (n *Node) MetricSet() *metric.MetricSet {
	return n.metricSet
}

// RPCAddr returns the address the RPC server listens on, or nil when it is
// disabled.
func (n *Node) RPCAddr() net.Addr {
	if n.rpcServer == nil {
		return nil
	}
	return n.rpcServer.Addr()
}

// ABCIAddr returns the address the ABCI server listens on.
func (n *Node) ABCIAddr() net.Addr {
	return n.abciServer.Addr()
}
