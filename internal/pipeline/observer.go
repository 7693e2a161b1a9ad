package pipeline

import (
	"sort"

	"github.com/rs/zerolog"
)

// Observer receives phase events from an Orchestrator. Calls are made on the
// goroutine running the pipeline, in order.
type Observer interface {
	OnPhaseStart(phase Phase)
	OnPhaseComplete(phase Phase, counts map[string]int64)
	OnError(phase Phase, err error)
}

// LogObserver writes phase events to a zerolog logger.
type LogObserver struct {
	logger zerolog.Logger
}

// NewLogObserver creates a LogObserver.
func NewLogObserver(logger zerolog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) OnPhaseStart(phase Phase) {
	o.logger.Info().Str("phase", string(phase)).Msg("Phase started")
}

func (o *LogObserver) OnPhaseComplete(phase Phase, counts map[string]int64) {
	event := o.logger.Info().Str("phase", string(phase))

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	var total int64
	d := zerolog.Dict()
	for _, name := range names {
		d = d.Int64(name, counts[name])
		total += counts[name]
	}

	event.Dict("rows", d).Int64("total_rows", total).Msg("Phase complete")
}

func (o *LogObserver) OnError(phase Phase, err error) {
	o.logger.Error().Err(err).Str("phase", string(phase)).Msg("Phase failed")
}

// Multi fans events out to several observers.
type Multi []Observer

func (m Multi) OnPhaseStart(phase Phase) {
	for _, o := range m {
		o.OnPhaseStart(phase)
	}
}

func (m Multi) OnPhaseComplete(phase Phase, counts map[string]int64) {
	for _, o := range m {
		o.OnPhaseComplete(phase, counts)
	}
}

func (m Multi) OnError(phase Phase, err error) {
	for _, o := range m {
		o.OnError(phase, err)
	}
}

type nopObserver struct{}

func (nopObserver) OnPhaseStart(Phase)                      {}
func (nopObserver) OnPhaseComplete(Phase, map[string]int64) {}
func (nopObserver) OnError(Phase, error)                    {}
