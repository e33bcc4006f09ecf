package ingest

import "log/slog"

// Observer receives progress of an ordered import. Callbacks run on the
// goroutine that called ImportBatch.
type Observer interface {
	// OnProgress is called once per resolved item; current counts from 1
	OnProgress(current, total int, label string)

	// OnComplete is called once after every item has an outcome
	OnComplete(success, failure int)

	// OnError is called for each item that did not succeed
	OnError(label string, err error)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Progress func(current, total int, label string)
	Complete func(success, failure int)
	Error    func(label string, err error)
}

// OnProgress implements Observer
func (f ObserverFuncs) OnProgress(current, total int, label string) {
	if f.Progress != nil {
		f.Progress(current, total, label)
	}
}

// OnComplete implements Observer
func (f ObserverFuncs) OnComplete(success, failure int) {
	if f.Complete != nil {
		f.Complete(success, failure)
	}
}

// OnError implements Observer
func (f ObserverFuncs) OnError(label string, err error) {
	if f.Error != nil {
		f.Error(label, err)
	}
}

// LogObserver reports progress through a structured logger
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver returns an observer logging to logger (nil uses the default logger)
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger}
}

// OnProgress implements Observer
func (o *LogObserver) OnProgress(current, total int, label string) {
	o.logger.Debug("import progress", "current", current, "total", total, "item", label)
}

// OnComplete implements Observer
func (o *LogObserver) OnComplete(success, failure int) {
	o.logger.Info("import finished", "succeeded", success, "failed", failure)
}

// OnError implements Observer
func (o *LogObserver) OnError(label string, err error) {
	o.logger.Warn("item not imported", "item", label, "error", err)
}

// MultiObserver fans callbacks out to several observers in order
type MultiObserver []Observer

// OnProgress implements Observer
func (m MultiObserver) OnProgress(current, total int, label string) {
	for _, o := range m {
		o.OnProgress(current, total, label)
	}
}

// OnComplete implements Observer
func (m MultiObserver) OnComplete(success, failure int) {
	for _, o := range m {
		o.OnComplete(success, failure)
	}
}

// OnError implements Observer
func (m MultiObserver) OnError(label string, err error) {
	for _, o := range m {
		o.OnError(label, err)
	}
}
