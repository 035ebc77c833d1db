// Package report contains listeners presenting the progress and results of
// a run.
package report

import (
	"time"

	"go.uber.org/zap"

	"sparqlbench/internal/bench"
	"sparqlbench/pkg/logging"
)

// Console logs run progress.
type Console struct {
	bench.NopListener

	Log *zap.SugaredLogger

	// Verbose logs every operation at info level instead of debug.
	Verbose bool
}

var _ bench.ProgressListener = (*Console)(nil)

func NewConsole(log *zap.SugaredLogger, verbose bool) *Console {
	return &Console{Log: logging.OrNop(log), Verbose: verbose}
}

func (c *Console) Start(mix *bench.OperationMix) error {
	c.Log.Infof("Starting mix %s with %d operations", mix.Name(), mix.Size())
	return nil
}

func (c *Console) Progress(msg string) error {
	if c.Verbose {
		c.Log.Info(msg)
	} else {
		c.Log.Debug(msg)
	}
	return nil
}

func (c *Console) AfterMix(mix *bench.OperationMix, run *bench.OperationMixRun) error {
	if errs := run.Errors(); errs > 0 {
		c.Log.Warnf("Mix run %d: %d operations in %v, %d errors",
			run.Order(), len(run.Runs()), run.Runtime().Round(time.Millisecond), errs)
		return nil
	}
	c.Log.Infof("Mix run %d: %d operations in %v",
		run.Order(), len(run.Runs()), run.Runtime().Round(time.Millisecond))
	return nil
}

func (c *Console) Finish(ok bool) error {
	if ok {
		c.Log.Info("Run finished")
	} else {
		c.Log.Error("ERROR Run finished unsuccessfully")
	}
	return nil
}
