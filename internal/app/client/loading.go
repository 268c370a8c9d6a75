package client

import gosync "sync"

// LoadingIndicator счетчик активных операций.
// Индикатор виден, пока счетчик больше нуля; вложенные Start/Stop
// скрывают его только на последнем Stop.
type LoadingIndicator struct {
	mu       gosync.Mutex
	count    int
	onChange func(visible bool)
}

func NewLoadingIndicator(onChange func(visible bool)) *LoadingIndicator {
	return &LoadingIndicator{onChange: onChange}
}

func (l *LoadingIndicator) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.count++
	if l.count == 1 && l.onChange != nil {
		l.onChange(true)
	}
}

// Stop без парного Start ничего не делает
func (l *LoadingIndicator) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count == 0 {
		return
	}
	l.count--
	if l.count == 0 && l.onChange != nil {
		l.onChange(false)
	}
}

func (l *LoadingIndicator) Visible() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count > 0
}

// Track оборачивает fn парой Start/Stop
func (l *LoadingIndicator) Track(fn func() error) error {
	l.Start()
	defer l.Stop()
	return fn()
}
