package apihook

// Call 是一次 Execute 的句柄，可用于等待该调用自身的结果。
// 被取代或被 Dispose 的调用以 ErrSuperseded 结束，其结果不会写入 Instance 状态。
type Call[T any] struct {
	id   string
	done chan struct{}
	data T
	err  error
}

func newCall[T any](id string) *Call[T] {
	return &Call[T]{id: id, done: make(chan struct{})}
}

func finishedCall[T any](id string, err error) *Call[T] {
	c := newCall[T](id)
	var zero T
	c.finish(zero, err)
	return c
}

// ID 返回调用令牌的标识，校验失败的调用没有令牌，返回空字符串。
func (c *Call[T]) ID() string {
	return c.id
}

// Done 在调用结束时关闭。
func (c *Call[T]) Done() <-chan struct{} {
	return c.done
}

// Wait 阻塞直到调用结束，返回结果或归一化后的错误。
func (c *Call[T]) Wait() (T, error) {
	<-c.done
	return c.data, c.err
}

func (c *Call[T]) finish(data T, err error) {
	c.data = data
	c.err = err
	close(c.done)
}
