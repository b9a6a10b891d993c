package plugin

import (
	"errors"

	"github.com/ledgerline/ledgerline/internal/logging"
)

// Dispatcher fans events out to every loaded sandbox in discovery
// order. One extension's hook failure never stops the fan-out; all
// failures are logged and returned joined.
type Dispatcher struct {
	registry *Registry
	log      *logging.Logger
}

// NewDispatcher creates a Dispatcher over the registry.
func NewDispatcher(registry *Registry, log *logging.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		log:      log.WithComponent("dispatcher"),
	}
}

// Dispatch delivers the event to every loaded sandbox. The returned
// error joins the per-extension hook errors; it is diagnostic, the
// event has already reached every healthy extension.
func (d *Dispatcher) Dispatch(event Event) error {
	hook := event.Hook()
	if hook == "" {
		return nil
	}
	args := event.hookArgs()

	var errs []error
	for _, sb := range d.registry.Loaded() {
		if err := sb.InvokeHook(hook, args...); err != nil {
			d.log.Error("dispatch %s: %v", event.Kind, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
