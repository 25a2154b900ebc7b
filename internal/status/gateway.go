// Package status tracks the bot's gateway connection for health reporting.
package status

import (
	"sync"
	"time"
)

// GatewayStatusChangeCallback is called when the gateway connection changes.
type GatewayStatusChangeCallback func(connected bool)

var (
	mu               sync.RWMutex
	gatewayConnected bool
	lastChange       time.Time
	gatewayCallbacks []GatewayStatusChangeCallback
)

// SetGatewayConnected records the gateway state and notifies callbacks when
// it changed.
func SetGatewayConnected(connected bool) {
	mu.Lock()
	previous := gatewayConnected
	gatewayConnected = connected
	if previous != connected {
		lastChange = time.Now()
	}
	callbacks := make([]GatewayStatusChangeCallback, len(gatewayCallbacks))
	copy(callbacks, gatewayCallbacks)
	mu.Unlock()

	if previous == connected {
		return
	}
	for _, callback := range callbacks {
		if callback != nil {
			callback(connected)
		}
	}
}

// IsGatewayConnected returns the gateway state and when it last changed.
func IsGatewayConnected() (bool, time.Time) {
	mu.RLock()
	defer mu.RUnlock()
	return gatewayConnected, lastChange
}

// RegisterGatewayStatusChangeCallback adds a callback for state changes.
func RegisterGatewayStatusChangeCallback(callback GatewayStatusChangeCallback) {
	mu.Lock()
	defer mu.Unlock()
	gatewayCallbacks = append(gatewayCallbacks, callback)
}

func reset() {
	mu.Lock()
	defer mu.Unlock()
	gatewayConnected = false
	lastChange = time.Time{}
	gatewayCallbacks = nil
}
