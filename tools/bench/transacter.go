package main

import (
	"fmt"
	// it is ok to use math/rand here: the bench only needs to spread load
	// across programs
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/tendermint/tendermint/libs/log"
	jsonrpc "github.com/tendermint/tendermint/rpc/jsonrpc/types"

	"github.com/kariy/starkmint/types"
)

const (
	sendTimeout = 10 * time.Second
	// the rpc server drops websocket connections that do not ping
	pingPeriod = (30 * 9 / 10) * time.Second

	requestID = "starkmint-bench"
)

// transacter keeps Connections websockets open to Target and sends Rate
// transactions per second on each one.
type transacter struct {
	Target            string
	Rate              int
	Connections       int
	BroadcastTxMethod string

	programs []types.FunctionExecution
	hasher   types.CanonicalHasher

	conns       []*websocket.Conn
	connsBroken []int32
	startingWg  sync.WaitGroup
	endingWg    sync.WaitGroup
	stopped     int32

	sent     uint64
	accepted uint64
	rejected uint64

	logger log.Logger
}

func newTransacter(
	target string,
	connections, rate int,
	broadcastTxMethod string,
	programs []types.FunctionExecution,
	hasher types.CanonicalHasher,
) *transacter {
	return &transacter{
		Target:            target,
		Rate:              rate,
		Connections:       connections,
		BroadcastTxMethod: broadcastTxMethod,
		programs:          programs,
		hasher:            hasher,
		conns:             make([]*websocket.Conn, connections),
		connsBroken:       make([]int32, connections),
		logger:            log.NewNopLogger(),
	}
}

// SetLogger lets you set your own logger
func (t *transacter) SetLogger(l log.Logger) {
	t.logger = l
}

// Start opens N = `t.Connections` connections to the target and creates read
// and write goroutines for each connection.
func (t *transacter) Start() error {
	atomic.StoreInt32(&t.stopped, 0)

	for i := 0; i < t.Connections; i++ {
		c, _, err := connect(t.Target)
		if err != nil {
			return err
		}
		t.conns[i] = c
	}

	t.startingWg.Add(t.Connections)
	t.endingWg.Add(2 * t.Connections)
	for i := 0; i < t.Connections; i++ {
		go t.sendLoop(i)
		go t.receiveLoop(i)
	}

	t.startingWg.Wait()

	return nil
}

// Stop closes the connections.
func (t *transacter) Stop() {
	atomic.StoreInt32(&t.stopped, 1)
	t.endingWg.Wait()
	for _, c := range t.conns {
		c.Close()
	}
}

func (t *transacter) isStopped() bool {
	return atomic.LoadInt32(&t.stopped) == 1
}

func (t *transacter) isBroken(connIndex int) bool {
	return atomic.LoadInt32(&t.connsBroken[connIndex]) == 1
}

func (t *transacter) markBroken(connIndex int) {
	atomic.StoreInt32(&t.connsBroken[connIndex], 1)
}

// receiveLoop reads the CheckTx answers of the connection and tallies them.
func (t *transacter) receiveLoop(connIndex int) {
	c := t.conns[connIndex]
	defer t.endingWg.Done()
	for {
		_, msg, err := c.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.logger.Error(
					fmt.Sprintf("failed to read response on conn %d", connIndex),
					"err",
					err,
				)
			}
			return
		}
		t.tally(msg)
		if t.isStopped() || t.isBroken(connIndex) {
			return
		}
	}
}

func (t *transacter) tally(msg []byte) {
	if jsoniter.Get(msg, "error").ValueType() != jsoniter.InvalidValue {
		atomic.AddUint64(&t.rejected, 1)
		return
	}
	if jsoniter.Get(msg, "result", "code").ToUint32() != types.CodeTypeOK {
		atomic.AddUint64(&t.rejected, 1)
		return
	}
	atomic.AddUint64(&t.accepted, 1)
}

// sendLoop generates transactions at a given rate.
func (t *transacter) sendLoop(connIndex int) {
	started := false
	// Close the starting waitgroup, in the event that this fails to start
	defer func() {
		if !started {
			t.startingWg.Done()
		}
	}()
	c := t.conns[connIndex]

	c.SetPingHandler(func(message string) error {
		err := c.WriteControl(websocket.PongMessage, []byte(message), time.Now().Add(sendTimeout))
		if err == websocket.ErrCloseSent {
			return nil
		} else if e, ok := err.(net.Error); ok && e.Temporary() {
			return nil
		}
		return err
	})

	logger := t.logger.With("addr", c.RemoteAddr())

	pingsTicker := time.NewTicker(pingPeriod)
	txsTicker := time.NewTicker(1 * time.Second)
	defer func() {
		pingsTicker.Stop()
		txsTicker.Stop()
		t.endingWg.Done()
	}()

	for {
		select {
		case <-txsTicker.C:
			startTime := time.Now()
			endTime := startTime.Add(time.Second)
			numTxSent := t.Rate
			if !started {
				t.startingWg.Done()
				started = true
			}

			now := time.Now()
			for i := 0; i < t.Rate; i++ {
				req, err := t.broadcastRequest()
				if err != nil {
					logger.Error("failed to build transaction", "err", err)
					t.markBroken(connIndex)
					return
				}

				c.SetWriteDeadline(now.Add(sendTimeout))
				if err := c.WriteJSON(req); err != nil {
					err = errors.Wrapf(err, "txs send failed on connection #%d", connIndex)
					t.markBroken(connIndex)
					logger.Error(err.Error())
					return
				}
				atomic.AddUint64(&t.sent, 1)

				// cache the time.Now() reads to save time.
				if i%5 == 0 {
					now = time.Now()
					if now.After(endTime) {
						// Plus one accounts for sending this tx
						numTxSent = i + 1
						break
					}
				}
			}

			timeToSend := time.Since(startTime)
			logger.Info(fmt.Sprintf("sent %d transactions", numTxSent), "took", timeToSend)
			if timeToSend < 1*time.Second {
				sleepTime := time.Second - timeToSend
				logger.Debug(fmt.Sprintf("connection #%d is sleeping for %f seconds", connIndex, sleepTime.Seconds()))
				time.Sleep(sleepTime)
			}

		case <-pingsTicker.C:
			// go-rpc server closes the connection in the absence of pings
			c.SetWriteDeadline(time.Now().Add(sendTimeout))
			if err := c.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				err = errors.Wrapf(err, "failed to write ping message on conn #%d", connIndex)
				logger.Error(err.Error())
				t.markBroken(connIndex)
			}
		}

		if t.isStopped() {
			// To cleanly close a connection, a client should send a close
			// frame and wait for the server to close the connection.
			c.SetWriteDeadline(time.Now().Add(sendTimeout))
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				err = errors.Wrapf(err, "failed to write close message on conn #%d", connIndex)
				logger.Error(err.Error())
				t.markBroken(connIndex)
			}

			return
		}
	}
}

// broadcastRequest wraps a fresh transaction of a random program in a
// broadcast request. The rpc server reads the tx param as base64.
func (t *transacter) broadcastRequest() (jsonrpc.RPCRequest, error) {
	tx, err := types.NewTransaction(t.programs[rand.Intn(len(t.programs))], t.hasher)
	if err != nil {
		return jsonrpc.RPCRequest{}, err
	}
	bz, err := types.EncodeTransaction(tx)
	if err != nil {
		return jsonrpc.RPCRequest{}, err
	}

	params, err := jsoniter.Marshal(map[string]interface{}{"tx": bz})
	if err != nil {
		return jsonrpc.RPCRequest{}, errors.Wrap(err, "failed to encode params")
	}

	return jsonrpc.RPCRequest{
		JSONRPC: "2.0",
		ID:      jsonrpc.JSONRPCStringID(requestID),
		Method:  t.BroadcastTxMethod,
		Params:  params,
	}, nil
}

type benchResult struct {
	Sent     uint64 `json:"sent"`
	Accepted uint64 `json:"accepted"`
	Rejected uint64 `json:"rejected"`
}

func (t *transacter) result() benchResult {
	return benchResult{
		Sent:     atomic.LoadUint64(&t.sent),
		Accepted: atomic.LoadUint64(&t.accepted),
		Rejected: atomic.LoadUint64(&t.rejected),
	}
}

func connect(host string) (*websocket.Conn, *http.Response, error) {
	u := url.URL{Scheme: "ws", Host: host, Path: "/websocket"}
	return websocket.DefaultDialer.Dial(u.String(), nil)
}
