package debounce

import "time"

// task is a cancellable scheduled call. The owning channel pairs every task
// with a generation number, so a task whose Stop lost the race against the
// timer firing is still ignored.
type task struct {
	timer *time.Timer
	gen   uint64
}

func schedule(d time.Duration, gen uint64, fn func(gen uint64)) *task {
	t := &task{gen: gen}
	t.timer = time.AfterFunc(d, func() { fn(gen) })
	return t
}

// Cancel stops the task. Safe on a nil task.
func (t *task) Cancel() bool {
	if t == nil {
		return false
	}
	return t.timer.Stop()
}
