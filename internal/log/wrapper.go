package log

import "sync"

// Wrapper adapts a seelog-backed BasicT into a T, applying a filter
// that prefixes every message with the logger's context.
type Wrapper struct {
	filter   contextFilter
	delegate BasicT
	mu       *sync.Mutex
}

// contextFilter prepends a fixed set of context tokens to every
// message, e.g. the owning socket or endpoint id.
type contextFilter struct {
	context []string
}

func (f contextFilter) apply(params ...interface{}) []interface{} {
	out := make([]interface{}, 0, len(f.context)+len(params))
	for _, c := range f.context {
		out = append(out, c+" ")
	}
	return append(out, params...)
}

func (f contextFilter) applyf(format string, params ...interface{}) (string, []interface{}) {
	prefix := ""
	for _, c := range f.context {
		prefix += c + " "
	}
	return prefix + format, params
}

func (w *Wrapper) WithContext(context ...string) T {
	merged := append(append([]string{}, w.filter.context...), context...)
	return &Wrapper{filter: contextFilter{context: merged}, delegate: w.delegate, mu: w.mu}
}

func (w *Wrapper) Tracef(format string, params ...interface{}) {
	format, params = w.filter.applyf(format, params...)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.delegate.Tracef(format, params...)
}

func (w *Wrapper) Debugf(format string, params ...interface{}) {
	format, params = w.filter.applyf(format, params...)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.delegate.Debugf(format, params...)
}

func (w *Wrapper) Infof(format string, params ...interface{}) {
	format, params = w.filter.applyf(format, params...)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.delegate.Infof(format, params...)
}

func (w *Wrapper) Warnf(format string, params ...interface{}) error {
	format, params = w.filter.applyf(format, params...)
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.delegate.Warnf(format, params...)
}

func (w *Wrapper) Errorf(format string, params ...interface{}) error {
	format, params = w.filter.applyf(format, params...)
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.delegate.Errorf(format, params...)
}

func (w *Wrapper) Trace(v ...interface{}) {
	v = w.filter.apply(v...)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.delegate.Trace(v...)
}

func (w *Wrapper) Debug(v ...interface{}) {
	v = w.filter.apply(v...)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.delegate.Debug(v...)
}

func (w *Wrapper) Info(v ...interface{}) {
	v = w.filter.apply(v...)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.delegate.Info(v...)
}

func (w *Wrapper) Warn(v ...interface{}) error {
	v = w.filter.apply(v...)
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.delegate.Warn(v...)
}

func (w *Wrapper) Error(v ...interface{}) error {
	v = w.filter.apply(v...)
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.delegate.Error(v...)
}

func (w *Wrapper) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.delegate.Flush()
}
