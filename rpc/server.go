package rpc

import (
	"net"
	"net/http"

	"github.com/tendermint/tendermint/libs/log"
	rpcserver "github.com/tendermint/tendermint/rpc/jsonrpc/server"
)

// Server is a running RPC server.
type Server struct {
	listener net.Listener
	done     chan struct{}
}

// StartServer serves Routes over HTTP on listenAddr.
func StartServer(listenAddr string, logger log.Logger) (*Server, error) {
	config := rpcserver.DefaultConfig()

	mux := http.NewServeMux()
	rpcserver.RegisterRPCFuncs(mux, Routes, logger)

	listener, err := rpcserver.Listen(listenAddr, config)
	if err != nil {
		return nil, err
	}

	s := &Server{
		listener: listener,
		done:     make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		if err := rpcserver.Serve(listener, mux, logger, config); err != nil {
			logger.Info("RPC server stopped", "err", err)
		}
	}()
	return s, nil
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Stop closes the listener and waits for the serve loop to return.
func (s *Server) Stop() error {
	err := s.listener.Close()
	<-s.done
	return err
}
