package bench

import (
	"fmt"
)

// Reporter receives progress events of a single mix runner.
type Reporter interface {
	Progress(msg string) error
	BeforeOperation(mix *OperationMix, id int) error
	AfterOperation(mix *OperationMix, run *OperationRun) error
	BeforeMix(mix *OperationMix) error
	AfterMix(mix *OperationMix, run *OperationMixRun) error
}

// ProgressListener observes a complete run.
type ProgressListener interface {
	Reporter
	Start(mix *OperationMix) error
	Finish(ok bool) error
}

// NopListener implements ProgressListener without doing anything. It is
// meant to be embedded.
type NopListener struct{}

var _ ProgressListener = NopListener{}

func (NopListener) Progress(string) error                             { return nil }
func (NopListener) BeforeOperation(*OperationMix, int) error          { return nil }
func (NopListener) AfterOperation(*OperationMix, *OperationRun) error { return nil }
func (NopListener) BeforeMix(*OperationMix) error                     { return nil }
func (NopListener) AfterMix(*OperationMix, *OperationMixRun) error    { return nil }
func (NopListener) Start(*OperationMix) error                         { return nil }
func (NopListener) Finish(bool) error                                 { return nil }

// PrefixReporter prefixes all progress messages of the wrapped reporter.
type PrefixReporter struct {
	Reporter
	Prefix string
}

func WorkerReporter(rep Reporter, worker int) Reporter {
	return PrefixReporter{Reporter: rep, Prefix: fmt.Sprintf("[Worker %d] ", worker)}
}

func (p PrefixReporter) Progress(msg string) error {
	return p.Reporter.Progress(p.Prefix + msg)
}

// Progressf formats a progress message.
func Progressf(rep Reporter, format string, args ...any) error {
	if rep == nil {
		return nil
	}
	return rep.Progress(fmt.Sprintf(format, args...))
}
