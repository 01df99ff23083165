package batch

import (
	"time"

	"github.com/pagebatch/pagebatch/api"
	"github.com/pagebatch/pagebatch/log"
	"github.com/pagebatch/pagebatch/operation"
)

// Report describes a finished item.
type Report struct {
	Index     int
	Engine    api.EngineType
	Operation operation.Kind
	// ResolveAttempts counts executable lookups, at most two.
	ResolveAttempts int
	// Installed is set when the installer ran.
	Installed  bool
	InstallErr error
	Duration   time.Duration
	Err        error
}

// Observer is told about the progress of items.
type Observer interface {
	StateChanged(index int, from, to State)
	ItemFinished(r Report)
}

// Observers fans out to several observers, in order.
type Observers []Observer

func (o Observers) StateChanged(index int, from, to State) {
	for _, obs := range o {
		obs.StateChanged(index, from, to)
	}
}

func (o Observers) ItemFinished(r Report) {
	for _, obs := range o {
		obs.ItemFinished(r)
	}
}

// LogObserver logs item progress.
type LogObserver struct {
	logger *log.Logger
}

// NewLogObserver returns an observer logging to logger.
func NewLogObserver(logger *log.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) StateChanged(index int, from, to State) {
	o.logger.Debugf("Executor:state", "item:%d %s -> %s", index, from, to)
}

func (o *LogObserver) ItemFinished(r Report) {
	if r.Err != nil {
		o.logger.Warnf("Executor:item", "item:%d engine:%s operation:%s kind:%s elapsed:%s err:%v",
			r.Index, r.Engine, r.Operation, KindOf(r.Err), r.Duration, r.Err)
		return
	}
	o.logger.Infof("Executor:item", "item:%d engine:%s operation:%s elapsed:%s",
		r.Index, r.Engine, r.Operation, r.Duration)
}
