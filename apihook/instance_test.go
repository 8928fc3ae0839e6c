package apihook

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingTransport 记录调用次数，并把每次请求交给 handler 处理。
type recordingTransport struct {
	calls   atomic.Int32
	handler func(ctx context.Context, req *Request) (*Response, error)
}

func (r *recordingTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	r.calls.Add(1)
	return r.handler(ctx, req)
}

func newTestHook[T any](t *testing.T, cfg Config[T], transport Transport) *Hook[T] {
	t.Helper()
	if cfg.Method == "" {
		cfg.Method = "GET"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.example.com"
	}
	cfg.NewTransport = func() Transport { return transport }
	hook, err := CreateHook(cfg)
	require.NoError(t, err)
	return hook
}

func okTransport(data any) *recordingTransport {
	return &recordingTransport{handler: func(context.Context, *Request) (*Response, error) {
		return &Response{StatusCode: 200, Data: data}, nil
	}}
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting")
	}
}

func TestCreateHookRejectsInvalidConfig(t *testing.T) {
	cases := []Config[any]{
		{Method: "TRACE", Endpoint: "/x"},
		{Method: "GET", Endpoint: "/x", Params: []Parameter{{Key: "", In: LocationQuery}}},
		{Method: "GET", Endpoint: "/x", Params: []Parameter{{Key: "id", In: LocationPath}}},
		{Method: "GET", Endpoint: "/x", FunctionName: "loadData"},
	}
	for _, cfg := range cases {
		_, err := CreateHook(cfg)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	}
}

func TestCreateHookComputesClassificationOnce(t *testing.T) {
	hook, err := CreateHook(Config[any]{
		Method:   "post",
		Endpoint: "/users/:userId/posts",
		Params:   []Parameter{{Key: "title", In: LocationBody, Required: true}},
	})
	require.NoError(t, err)

	assert.Equal(t, "POST", hook.Method())
	assert.Equal(t, PostData, hook.FunctionName())
	assert.Equal(t, []string{"userId"}, hook.Classification().PathKeys)
	assert.Equal(t, []string{"title"}, hook.Classification().Body.Required)
}

func TestOperationsPopulateSelectedSlotOnly(t *testing.T) {
	hook := newTestHook(t, Config[any]{Method: "DELETE", Endpoint: "/x"}, okTransport(nil))
	ops := hook.Activate().Operations()

	assert.NotNil(t, ops.DeleteData)
	assert.Nil(t, ops.FetchData)
	assert.Nil(t, ops.PostData)
	assert.Nil(t, ops.PutData)
	assert.Nil(t, ops.PatchData)

	hook = newTestHook(t, Config[any]{Method: "GET", Endpoint: "/x", FunctionName: PostData}, okTransport(nil))
	ops = hook.Activate().Operations()
	assert.NotNil(t, ops.PostData)
	assert.Nil(t, ops.FetchData)
}

func TestExecuteValidationFailureSkipsTransport(t *testing.T) {
	transport := okTransport("unused")
	hook := newTestHook(t, Config[any]{
		Endpoint: "/search",
		Params:   []Parameter{{Key: "q", In: LocationQuery, Required: true}},
	}, transport)
	inst := hook.Activate()

	var callbackErr error
	call := inst.Operations().FetchData(Args{}, Callbacks[any]{OnError: func(err error) { callbackErr = err }})

	_, err := call.Wait()
	assert.ErrorIs(t, err, ErrMissingParameters)
	assert.ErrorIs(t, callbackErr, ErrMissingParameters)
	assert.Equal(t, int32(0), transport.calls.Load())
	assert.Empty(t, call.ID())

	state := inst.State()
	assert.False(t, state.Loading)
	assert.Nil(t, state.Response)
	assert.ErrorIs(t, state.Error, ErrMissingParameters)
}

func TestExecuteSuccessUpdatesState(t *testing.T) {
	transport := okTransport(map[string]any{"id": float64(1), "title": "hello"})
	hook := newTestHook(t, Config[post]{Endpoint: "/posts/:id"}, transport)
	inst := hook.Activate()
	defer inst.Dispose()

	var mu sync.Mutex
	var states []State[post]
	inst.Subscribe(func(s State[post]) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	var got post
	call := inst.Execute(Args{Path: map[string]any{"id": 1}}, Callbacks[post]{OnSuccess: func(p post) { got = p }})
	data, err := call.Wait()
	require.NoError(t, err)
	assert.NotEmpty(t, call.ID())

	want := post{ID: 1, Title: "hello"}
	assert.Equal(t, want, data)
	assert.Equal(t, want, got)

	state := inst.State()
	require.NotNil(t, state.Response)
	assert.Equal(t, want, *state.Response)
	assert.False(t, state.Loading)
	assert.NoError(t, state.Error)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, states, 2)
	assert.True(t, states[0].Loading)
	assert.False(t, states[1].Loading)
}

func TestExecuteTransportFailureNormalizesError(t *testing.T) {
	transport := &recordingTransport{handler: func(context.Context, *Request) (*Response, error) {
		return nil, &TransportError{StatusCode: 400, ResponseBody: map[string]any{"message": "bad title"}, Message: "request failed with status code 400"}
	}}
	hook := newTestHook(t, Config[any]{Method: "POST", Endpoint: "/posts"}, transport)
	inst := hook.Activate()

	var callbackErr error
	_, err := inst.Operations().PostData(Args{}, Callbacks[any]{OnError: func(err error) { callbackErr = err }}).Wait()

	require.Error(t, err)
	assert.Equal(t, "bad title", err.Error())
	assert.Same(t, err, callbackErr)
	assert.Same(t, err, inst.State().Error)
	assert.False(t, inst.State().Loading)
}

func TestExecuteInvalidResponseIsFailure(t *testing.T) {
	hook := newTestHook(t, Config[any]{
		Endpoint:         "/posts",
		ValidateResponse: func(data any) bool { return data != nil },
	}, okTransport(nil))
	inst := hook.Activate()

	_, err := inst.Execute(Args{}, Callbacks[any]{}).Wait()
	assert.ErrorIs(t, err, ErrInvalidResponse)
	assert.Nil(t, inst.State().Response)
}

func TestExecuteSupersedesInFlightCall(t *testing.T) {
	releaseA := make(chan struct{})
	startedA := make(chan struct{})
	var ctxA context.Context

	transport := &recordingTransport{handler: func(ctx context.Context, req *Request) (*Response, error) {
		if req.URL == "/items/a" {
			ctxA = ctx
			close(startedA)
			<-releaseA
			return &Response{StatusCode: 200, Data: "A"}, nil
		}
		return &Response{StatusCode: 200, Data: "B"}, nil
	}}
	hook := newTestHook(t, Config[string]{Endpoint: "/items/:id"}, transport)
	inst := hook.Activate()
	defer inst.Dispose()

	var successA atomic.Bool
	callA := inst.Execute(Args{Path: map[string]any{"id": "a"}}, Callbacks[string]{OnSuccess: func(string) { successA.Store(true) }})
	waitFor(t, startedA)

	callB := inst.Execute(Args{Path: map[string]any{"id": "b"}}, Callbacks[string]{})
	require.Error(t, ctxA.Err(), "previous token must be cancelled before the next call starts")

	dataB, err := callB.Wait()
	require.NoError(t, err)
	assert.Equal(t, "B", dataB)

	close(releaseA)
	_, errA := callA.Wait()
	assert.ErrorIs(t, errA, ErrSuperseded)
	assert.False(t, successA.Load())

	state := inst.State()
	require.NotNil(t, state.Response)
	assert.Equal(t, "B", *state.Response)
	assert.False(t, state.Loading)
	assert.NoError(t, state.Error)
}

func TestDisposeSuppressesInFlightResult(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var cancelled atomic.Bool

	transport := &recordingTransport{handler: func(ctx context.Context, req *Request) (*Response, error) {
		close(started)
		<-release
		cancelled.Store(ctx.Err() != nil)
		return &Response{StatusCode: 200, Data: "late"}, nil
	}}
	hook := newTestHook(t, Config[string]{Endpoint: "/slow"}, transport)
	inst := hook.Activate()

	notified := make(chan State[string], 4)
	inst.Subscribe(func(s State[string]) { notified <- s })

	call := inst.Execute(Args{}, Callbacks[string]{})
	waitFor(t, started)
	<-notified

	inst.Dispose()
	inst.Dispose()
	close(release)

	_, err := call.Wait()
	assert.ErrorIs(t, err, ErrSuperseded)
	assert.True(t, cancelled.Load())

	state := inst.State()
	assert.Nil(t, state.Response)
	assert.True(t, state.Loading)
	assert.Len(t, notified, 0)

	_, err = inst.Execute(Args{}, Callbacks[string]{}).Wait()
	assert.ErrorIs(t, err, ErrDisposed)
	assert.Equal(t, int32(1), transport.calls.Load())
}

func TestRefetchReusesLastArgs(t *testing.T) {
	var urls []string
	var mu sync.Mutex
	transport := &recordingTransport{handler: func(_ context.Context, req *Request) (*Response, error) {
		mu.Lock()
		urls = append(urls, req.URL)
		mu.Unlock()
		return &Response{StatusCode: 200, Data: req.URL}, nil
	}}
	hook := newTestHook(t, Config[string]{Endpoint: "/users/:id"}, transport)
	inst := hook.Activate()

	_, err := inst.Refetch().Wait()
	assert.ErrorIs(t, err, ErrMissingParameters)

	_, err = inst.Execute(Args{Path: map[string]any{"id": 3}}, Callbacks[string]{}).Wait()
	require.NoError(t, err)
	data, err := inst.Refetch().Wait()
	require.NoError(t, err)
	assert.Equal(t, "/users/3", data)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/users/3", "/users/3"}, urls)
}

func TestActivateCreatesIsolatedInstances(t *testing.T) {
	var created atomic.Int32
	hook, err := CreateHook(Config[any]{
		Method:   "GET",
		Endpoint: "/x",
		NewTransport: func() Transport {
			created.Add(1)
			return okTransport("ok")
		},
	})
	require.NoError(t, err)

	first := hook.Activate()
	second := hook.Activate()
	_, err = first.Execute(Args{}, Callbacks[any]{}).Wait()
	require.NoError(t, err)

	assert.Equal(t, int32(2), created.Load())
	assert.NotNil(t, first.State().Response)
	assert.Nil(t, second.State().Response)
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	hook := newTestHook(t, Config[any]{Endpoint: "/x"}, okTransport("ok"))
	inst := hook.Activate()

	var count atomic.Int32
	unsubscribe := inst.Subscribe(func(State[any]) { count.Add(1) })
	unsubscribe()

	_, err := inst.Execute(Args{}, Callbacks[any]{}).Wait()
	require.NoError(t, err)
	assert.Equal(t, int32(0), count.Load())
}

func TestCustomOnErrorReceivesRawError(t *testing.T) {
	raw := errors.New("connection reset")
	transport := &recordingTransport{handler: func(context.Context, *Request) (*Response, error) {
		return nil, raw
	}}
	var seen error
	hook := newTestHook(t, Config[any]{
		Endpoint: "/x",
		OnError: func(err error) error {
			seen = err
			return errors.New("service unavailable")
		},
	}, transport)

	_, err := hook.Activate().Execute(Args{}, Callbacks[any]{}).Wait()
	assert.Same(t, raw, seen)
	assert.EqualError(t, err, "service unavailable")
}

func TestNotificationsNeverRegress(t *testing.T) {
	hook := newTestHook(t, Config[any]{Endpoint: "/x"}, &recordingTransport{
		handler: func(ctx context.Context, req *Request) (*Response, error) {
			return &Response{StatusCode: 200, Data: "ok"}, nil
		},
	})
	inst := hook.Activate()

	var (
		mu   sync.Mutex
		last State[any]
		seen int
	)
	inst.Subscribe(func(s State[any]) {
		mu.Lock()
		last = s
		seen++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for n := 0; n < 50; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = inst.Execute(Args{}, Callbacks[any]{}).Wait()
		}()
	}
	wg.Wait()

	final := inst.State()
	mu.Lock()
	defer mu.Unlock()
	require.NotZero(t, seen)
	assert.Equal(t, final.Loading, last.Loading)
	assert.Equal(t, final.Response, last.Response)
}

func TestEmitDropsOlderSnapshots(t *testing.T) {
	inst := newTestHook(t, Config[string]{Endpoint: "/x"}, okTransport("ok")).Activate()

	var got []bool
	listener := func(s State[string]) { got = append(got, s.Loading) }

	inst.emit([]func(State[string]){listener}, State[string]{Loading: false}, 2)
	inst.emit([]func(State[string]){listener}, State[string]{Loading: true}, 1)
	inst.emit([]func(State[string]){listener}, State[string]{Loading: true}, 3)

	assert.Equal(t, []bool{false, true}, got)
}
