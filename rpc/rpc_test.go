package rpc

import (
	"errors"
	"io/ioutil"
	"net/http"
	"testing"

	"github.com/fortytw2/leaktest"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"
	rpctypes "github.com/tendermint/tendermint/rpc/jsonrpc/types"

	"github.com/kariy/starkmint/libs/metric"
	"github.com/kariy/starkmint/state"
)

type fixedState struct {
	st  state.State
	err error
}

func (f fixedState) LastState() (state.State, error) {
	return f.st, f.err
}

func setTestEnvironment(t *testing.T, sp StateProvider) {
	ms := metric.NewMetricSet()
	require.NoError(t, ms.SetMetrics("block", metric.JSONItem(func() interface{} {
		return map[string]int{"height": 7}
	})))
	SetEnvironment(&Environment{State: sp, MetricSet: ms})
}

func TestAppStatus(t *testing.T) {
	setTestEnvironment(t, fixedState{st: state.State{LastBlockHeight: 7, LastAppHash: []byte{0xab, 0xcd}}})

	res, err := AppStatus(&rpctypes.Context{})
	require.NoError(t, err)
	assert.EqualValues(t, 7, res.LastHeight)
	assert.Equal(t, "ABCD", res.LastAppHash.String())

	setTestEnvironment(t, fixedState{err: errors.New("malformed")})
	_, err = AppStatus(&rpctypes.Context{})
	assert.Error(t, err)
}

func TestJSONMetrics(t *testing.T) {
	setTestEnvironment(t, fixedState{})

	res, err := JSONMetrics(&rpctypes.Context{}, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"block": `{"height":7}`}, res.Metrics)

	_, err = JSONMetrics(&rpctypes.Context{}, "lanes")
	assert.True(t, errors.Is(err, metric.ErrMetricLabelNotFound))
}

func TestServerRoutes(t *testing.T) {
	setTestEnvironment(t, fixedState{st: state.State{LastBlockHeight: 3}})

	s, err := StartServer("tcp://127.0.0.1:0", log.TestingLogger())
	require.NoError(t, err)
	defer s.Stop()

	resp, err := http.Get("http://" + s.Addr().String() + "/app_status")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, "3", jsoniter.Get(body, "result", "last_height").ToString())
}

func TestServerStopWaitsForServeLoop(t *testing.T) {
	defer leaktest.Check(t)()
	setTestEnvironment(t, fixedState{st: state.State{LastBlockHeight: 5}})

	s, err := StartServer("tcp://127.0.0.1:0", log.TestingLogger())
	require.NoError(t, err)

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + s.Addr().String() + "/app_status")
	require.NoError(t, err)
	body, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, "5", jsoniter.Get(body, "result", "last_height").ToString())

	require.NoError(t, s.Stop())
	select {
	case <-s.done:
	default:
		t.Fatal("serve loop still running after Stop")
	}
}
