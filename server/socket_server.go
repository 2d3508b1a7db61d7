package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	abcitypes "github.com/tendermint/tendermint/abci/types"
	tmlog "github.com/tendermint/tendermint/libs/log"
	tmnet "github.com/tendermint/tendermint/libs/net"
	"github.com/tendermint/tendermint/libs/service"

	"github.com/kariy/starkmint/lanes"
)

// pendingResponses bounds how far reading may run ahead of writing on one
// connection.
const pendingResponses = 1000

// Submitter schedules a request and returns its pending response.
// lanes.Topology implements it.
type Submitter interface {
	Submit(ctx context.Context, req *abcitypes.Request) *lanes.Future
}

// SocketServer serves the ABCI socket protocol. Requests of one connection
// are handed to the Submitter as they are read, so lanes make progress
// independently, and responses are written back in request order.
type SocketServer struct {
	service.BaseService

	proto          string
	addr           string
	readBufferSize int
	listener       net.Listener

	connsMtx   sync.Mutex
	conns      map[int]net.Conn
	nextConnID int

	wg sync.WaitGroup

	submitter Submitter
}

func NewSocketServer(protoAddr string, submitter Submitter, readBufferSize int) *SocketServer {
	proto, addr := tmnet.ProtocolAndAddress(protoAddr)
	s := &SocketServer{
		proto:          proto,
		addr:           addr,
		readBufferSize: readBufferSize,
		conns:          make(map[int]net.Conn),
		submitter:      submitter,
	}
	s.BaseService = *service.NewBaseService(tmlog.NewNopLogger(), "ABCIServer", s)
	return s
}

func (s *SocketServer) OnStart() error {
	if s.proto == "unix" {
		if err := os.Remove(s.addr); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	ln, err := net.Listen(s.proto, s.addr)
	if err != nil {
		return err
	}

	s.listener = ln
	s.wg.Add(1)
	go s.acceptConnectionsRoutine()

	return nil
}

func (s *SocketServer) OnStop() {
	if err := s.listener.Close(); err != nil {
		s.Logger.Error("Error closing listener", "err", err)
	}

	s.connsMtx.Lock()
	for id, conn := range s.conns {
		if err := conn.Close(); err != nil {
			s.Logger.Error("Error closing connection", "id", id, "conn", conn, "err", err)
		}
	}
	s.connsMtx.Unlock()

	s.wg.Wait()
}

// Addr returns the listening address, useful when listening on port 0.
func (s *SocketServer) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *SocketServer) addConn(conn net.Conn) int {
	s.connsMtx.Lock()
	defer s.connsMtx.Unlock()

	connID := s.nextConnID
	s.nextConnID++
	s.conns[connID] = conn

	return connID
}

// deletes conn even if close errs
func (s *SocketServer) rmConn(connID int) error {
	s.connsMtx.Lock()
	defer s.connsMtx.Unlock()

	conn, ok := s.conns[connID]
	if !ok {
		return fmt.Errorf("connection %d does not exist", connID)
	}

	delete(s.conns, connID)
	return conn.Close()
}

func (s *SocketServer) acceptConnectionsRoutine() {
	defer s.wg.Done()

	for {
		// Accept a connection
		s.Logger.Info("Waiting for new connection...")
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.IsRunning() {
				return // Ignore error from listener closing.
			}
			s.Logger.Error("Failed to accept connection", "err", err)
			continue
		}

		s.Logger.Info("Accepted a new connection")

		connID := s.addConn(conn)

		ctx, cancel := context.WithCancel(context.Background())
		closeConn := make(chan error, 2)                      // Push to signal connection closed
		pending := make(chan *lanes.Future, pendingResponses) // A channel to buffer responses

		s.wg.Add(3)
		// Read requests from conn and deal with them
		go s.handleRequests(ctx, closeConn, conn, pending)
		// Pull responses from 'pending' and write them to conn.
		go s.handleResponses(ctx, closeConn, conn, pending)
		// Wait until signal to close connection
		go s.waitForClose(closeConn, connID, cancel)
	}
}

func (s *SocketServer) waitForClose(closeConn chan error, connID int, cancel context.CancelFunc) {
	defer s.wg.Done()

	err := <-closeConn
	switch {
	case err == io.EOF:
		s.Logger.Info("Connection was closed by client", "conn", connID)
	case err != nil:
		s.Logger.Error("Connection error", "conn", connID, "err", err)
	default:
		// never happens
		s.Logger.Error("Connection was closed", "conn", connID)
	}

	cancel()
	if err := s.rmConn(connID); err != nil {
		s.Logger.Debug("Error closing connection", "conn", connID, "err", err)
	}
}

// Read requests from conn and deal with them
func (s *SocketServer) handleRequests(
	ctx context.Context,
	closeConn chan error,
	conn io.Reader,
	pending chan<- *lanes.Future,
) {
	defer s.wg.Done()
	defer close(pending)

	var bufReader = bufio.NewReaderSize(conn, s.readBufferSize)

	for {
		var req = &abcitypes.Request{}
		err := abcitypes.ReadMessage(bufReader, req)
		if err != nil {
			if err == io.EOF {
				closeConn <- err
			} else {
				closeConn <- fmt.Errorf("error reading message: %w", err)
			}
			return
		}
		fut := s.submitter.Submit(ctx, req)
		select {
		case pending <- fut:
		case <-ctx.Done():
			return
		}
	}
}

// Pull responses from 'pending' and write them to conn.
func (s *SocketServer) handleResponses(
	ctx context.Context,
	closeConn chan error,
	conn io.Writer,
	pending <-chan *lanes.Future,
) {
	defer s.wg.Done()

	var bufWriter = bufio.NewWriter(conn)

	for fut := range pending {
		var res *abcitypes.Response
		select {
		case <-fut.Done():
			res = fut.Response()
		case <-ctx.Done():
			return
		}

		err := abcitypes.WriteMessage(res, bufWriter)
		if err != nil {
			closeConn <- fmt.Errorf("error writing message: %w", err)
			return
		}
		if _, ok := res.Value.(*abcitypes.Response_Flush); ok {
			err = bufWriter.Flush()
			if err != nil {
				closeConn <- fmt.Errorf("error flushing write buffer: %w", err)
				return
			}
		}
	}
}
