package monitoring

import (
	"github.com/akeren/lore-anchor-waitlist/config/router"
)

type MonitoringControllerFactory interface {
	CreateController() *router.RESTController
}

type DefaultMonitoringControllerFactory struct {
	store Pinger
	cache Pinger
}

// NewMonitoringControllerFactory takes the waitlist store and an optional cache.
// Pass a nil interface, not a typed nil, when there is no cache.
func NewMonitoringControllerFactory(store, cache Pinger) MonitoringControllerFactory {
	return &DefaultMonitoringControllerFactory{store: store, cache: cache}
}

func (f *DefaultMonitoringControllerFactory) CreateController() *router.RESTController {
	return NewMonitoringController(f.store, f.cache)
}
