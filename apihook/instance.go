package apihook

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// State 是 Instance 对外可见的状态快照。
type State[T any] struct {
	// Response 为最近一次成功调用转换后的结果，尚未成功过时为 nil。
	Response *T
	Error    error
	Loading  bool
}

// Callbacks 为单次调用的可选回调，OnError 收到的是归一化后的错误。
type Callbacks[T any] struct {
	OnSuccess func(data T)
	OnError   func(err error)
}

// ExecuteFunc 是操作槽位的函数签名。
type ExecuteFunc[T any] func(args Args, callbacks Callbacks[T]) *Call[T]

// Operations 固定列出五个操作槽位，只有命名策略选中的那个非空。
type Operations[T any] struct {
	FetchData  ExecuteFunc[T]
	PostData   ExecuteFunc[T]
	PutData    ExecuteFunc[T]
	PatchData  ExecuteFunc[T]
	DeleteData ExecuteFunc[T]
}

// callToken 标识一次调用尝试；只有与 Instance.inflight 相同的令牌才能写回状态。
type callToken struct {
	id     string
	cancel context.CancelFunc
}

type lastCall[T any] struct {
	args      Args
	callbacks Callbacks[T]
}

// Instance 是 Hook 的一次激活，持有独立的状态与在途请求。
type Instance[T any] struct {
	hook      *Hook[T]
	transport Transport

	mu           sync.Mutex
	state        State[T]
	inflight     *callToken
	disposed     bool
	last         *lastCall[T]
	listeners    map[uint64]func(State[T])
	nextListener uint64
	// version 随每次状态变化递增，受 mu 保护。
	version uint64

	// notifyMu 串行化监听器回调；delivered 为已通知的最大 version，更旧的快照直接丢弃。
	notifyMu  sync.Mutex
	delivered uint64
}

func newInstance[T any](hook *Hook[T], transport Transport) *Instance[T] {
	return &Instance[T]{
		hook:      hook,
		transport: transport,
		listeners: make(map[uint64]func(State[T])),
	}
}

// State 返回当前状态快照。
func (i *Instance[T]) State() State[T] {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// FunctionName 返回该实例暴露的操作名。
func (i *Instance[T]) FunctionName() string {
	return i.hook.functionName
}

// Operations 返回只填充了选中槽位的操作记录。
func (i *Instance[T]) Operations() Operations[T] {
	var ops Operations[T]
	exec := ExecuteFunc[T](i.Execute)
	switch i.hook.functionName {
	case PostData:
		ops.PostData = exec
	case PutData:
		ops.PutData = exec
	case PatchData:
		ops.PatchData = exec
	case DeleteData:
		ops.DeleteData = exec
	default:
		ops.FetchData = exec
	}
	return ops
}

// Subscribe 注册状态监听器，每次状态变化后以快照调用；返回的函数用于取消注册。
// 回调串行执行且按状态变化顺序送达，已被更新状态取代的快照会被丢弃。
// 回调内不能同步调用 Execute/Refetch，需要时另起 goroutine。
func (i *Instance[T]) Subscribe(fn func(State[T])) func() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if fn == nil || i.disposed {
		return func() {}
	}
	id := i.nextListener
	i.nextListener++
	i.listeners[id] = fn
	return func() {
		i.mu.Lock()
		delete(i.listeners, id)
		i.mu.Unlock()
	}
}

// Execute 等价于使用 context.Background 的 ExecuteContext。
func (i *Instance[T]) Execute(args Args, callbacks Callbacks[T]) *Call[T] {
	return i.ExecuteContext(context.Background(), args, callbacks)
}

// ExecuteContext 发起一次调用并立即返回 Call。
// 参数校验失败时同步写入错误并回调 OnError，不会发起传输；
// 否则先同步取消上一次在途调用，再在新的 goroutine 中执行传输。
func (i *Instance[T]) ExecuteContext(ctx context.Context, args Args, callbacks Callbacks[T]) *Call[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	req, verr := i.hook.assembler.Assemble(args)

	i.mu.Lock()
	if i.disposed {
		i.mu.Unlock()
		return finishedCall[T]("", ErrDisposed)
	}
	i.last = &lastCall[T]{args: args, callbacks: callbacks}
	i.state.Loading = true
	i.state.Error = nil

	if verr != nil {
		i.state.Error = verr
		i.state.Loading = false
		snapshot, listeners, version := i.snapshotLocked()
		i.mu.Unlock()

		i.emit(listeners, snapshot, version)
		i.hook.logger.WithFields(i.baseFields("")).Warn("call rejected: " + verr.Error())
		if callbacks.OnError != nil {
			callbacks.OnError(verr)
		}
		return finishedCall[T]("", verr)
	}

	if i.inflight != nil {
		i.inflight.cancel()
	}
	callCtx, cancel := context.WithCancel(ctx)
	token := &callToken{id: uuid.NewString(), cancel: cancel}
	i.inflight = token
	snapshot, listeners, version := i.snapshotLocked()
	i.mu.Unlock()

	i.emit(listeners, snapshot, version)
	call := newCall[T](token.id)
	go i.run(callCtx, token, req, callbacks, call)
	return call
}

// Refetch 以最近一次的参数与回调重新调用；尚未调用过时使用空参数。
func (i *Instance[T]) Refetch() *Call[T] {
	i.mu.Lock()
	last := i.last
	i.mu.Unlock()
	if last == nil {
		return i.Execute(Args{}, Callbacks[T]{})
	}
	return i.Execute(last.args, last.callbacks)
}

// Dispose 取消在途调用并停止一切后续状态写入，可重复调用。
func (i *Instance[T]) Dispose() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.disposed {
		return
	}
	i.disposed = true
	if i.inflight != nil {
		i.inflight.cancel()
		i.inflight = nil
	}
	i.listeners = nil
}

func (i *Instance[T]) run(ctx context.Context, token *callToken, req *Request, callbacks Callbacks[T], call *Call[T]) {
	started := time.Now()
	fields := i.baseFields(token.id)
	fields["url"] = req.URL
	i.hook.logger.WithFields(fields).Debug("call started")

	var data T
	resp, err := i.transport.Do(ctx, req)
	if err == nil {
		fields["status"] = resp.StatusCode
		data, err = i.hook.pipeline.process(resp.Data)
	}
	var normalized error
	if err != nil {
		normalized = i.hook.pipeline.normalize(err)
	}

	i.mu.Lock()
	if i.disposed || i.inflight != token {
		i.mu.Unlock()
		token.cancel()
		i.hook.logger.WithFields(fields).Debug("stale call discarded")
		var zero T
		call.finish(zero, ErrSuperseded)
		return
	}
	i.inflight = nil
	if normalized != nil {
		i.state.Error = normalized
	} else {
		stored := data
		i.state.Response = &stored
	}
	i.state.Loading = false
	snapshot, listeners, version := i.snapshotLocked()
	i.mu.Unlock()
	token.cancel()

	i.emit(listeners, snapshot, version)
	fields["duration_ms"] = time.Since(started).Milliseconds()

	if normalized != nil {
		var te *TransportError
		if errors.As(err, &te) && te.StatusCode > 0 {
			fields["status"] = te.StatusCode
		}
		i.hook.logger.WithFields(fields).Warn(normalized.Error())
		if callbacks.OnError != nil {
			callbacks.OnError(normalized)
		}
		var zero T
		call.finish(zero, normalized)
		return
	}

	i.hook.logger.WithFields(fields).Info("call completed")
	if callbacks.OnSuccess != nil {
		callbacks.OnSuccess(data)
	}
	call.finish(data, nil)
}

func (i *Instance[T]) baseFields(callID string) logrus.Fields {
	fields := logrus.Fields{
		"action":   "call",
		"endpoint": i.hook.name,
		"method":   i.hook.method,
		"function": i.hook.functionName,
	}
	if callID != "" {
		fields["call_id"] = callID
	}
	return fields
}

// snapshotLocked 在持有 mu 时记录一次状态变化，返回快照、当时的监听器与其 version。
func (i *Instance[T]) snapshotLocked() (State[T], []func(State[T]), uint64) {
	i.version++
	return i.state, i.listenersLocked(), i.version
}

func (i *Instance[T]) listenersLocked() []func(State[T]) {
	if len(i.listeners) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(i.listeners))
	for id := range i.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	out := make([]func(State[T]), 0, len(ids))
	for _, id := range ids {
		out = append(out, i.listeners[id])
	}
	return out
}

func (i *Instance[T]) emit(listeners []func(State[T]), snapshot State[T], version uint64) {
	if len(listeners) == 0 {
		return
	}
	i.notifyMu.Lock()
	defer i.notifyMu.Unlock()
	if version <= i.delivered {
		return
	}
	i.mu.Lock()
	disposed := i.disposed
	i.mu.Unlock()
	if disposed {
		return
	}
	i.delivered = version
	for _, fn := range listeners {
		fn(snapshot)
	}
}
