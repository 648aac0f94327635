package orchestrator

import (
	"errors"

	"github.com/dbsmedya/gofanout/internal/types"
)

// EventExecutionStatusUpdate is emitted once per processed database.
const EventExecutionStatusUpdate = "execution-status-update"

// Emitter receives progress events. Errors are logged by the orchestrator
// and never stop a run.
type Emitter interface {
	Emit(event string, report types.DatabaseReport) error
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(event string, report types.DatabaseReport) error

// Emit calls f(event, report).
func (f EmitterFunc) Emit(event string, report types.DatabaseReport) error {
	return f(event, report)
}

// Event is a named report, as delivered by ChannelEmitter.
type Event struct {
	Name   string
	Report types.DatabaseReport
}

// ChannelEmitter forwards events to a channel. Emit blocks until the
// channel accepts the event.
type ChannelEmitter struct {
	ch chan<- Event
}

// NewChannelEmitter creates an emitter writing to ch.
func NewChannelEmitter(ch chan<- Event) *ChannelEmitter {
	return &ChannelEmitter{ch: ch}
}

// Emit sends the event on the channel.
func (c *ChannelEmitter) Emit(event string, report types.DatabaseReport) error {
	c.ch <- Event{Name: event, Report: report}
	return nil
}

type multiEmitter []Emitter

// MultiEmitter fans every event out to all emitters in order. It returns
// the joined errors of the emitters that failed.
func MultiEmitter(emitters ...Emitter) Emitter {
	return multiEmitter(emitters)
}

func (m multiEmitter) Emit(event string, report types.DatabaseReport) error {
	var errs []error
	for _, e := range m {
		if err := e.Emit(event, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
