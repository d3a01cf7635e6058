package main

import (
	"errors"
	"fmt"
	"sync"

	"github.com/TheAnnalyst/Offseason-Croissant/internal/metrics"
)

var errDriverConnected = errors.New("another driver is connected")

//xMutex is a mutex that fails instead of blocking. It keeps the control
//socket to one driver at a time.
type xMutex struct {
	lck    sync.Mutex
	holder string
}

func (xm *xMutex) Lock(holder string) error {
	xm.lck.Lock()
	defer xm.lck.Unlock()
	if xm.holder != "" {
		return fmt.Errorf("%w (%s)", errDriverConnected, xm.holder)
	}
	xm.holder = holder
	metrics.ControlClients.Set(1)
	return nil
}

func (xm *xMutex) Unlock() {
	xm.lck.Lock()
	defer xm.lck.Unlock()
	xm.holder = ""
	metrics.ControlClients.Set(0)
}

//Holder is who has the lock, or empty
func (xm *xMutex) Holder() string {
	xm.lck.Lock()
	defer xm.lck.Unlock()
	return xm.holder
}
