// Package di provides dependency injection container
package di

import (
	"github.com/ssargent/wearlevel/pkg/api"    //nolint:depguard
	"github.com/ssargent/wearlevel/pkg/device" //nolint:depguard
)

// DeviceFactory opens the byte device a store runs on
type DeviceFactory interface {
	// OpenDevice opens the device described by cfg. When trackWear is set
	// the device is wrapped in a WearCounter, which is returned as well.
	OpenDevice(cfg device.Config, trackWear bool) (device.Device, *device.WearCounter, error)
}

// DefaultDeviceFactory opens devices with device.Open
type DefaultDeviceFactory struct{}

// NewDeviceFactory creates a new device factory
func NewDeviceFactory() DeviceFactory {
	return &DefaultDeviceFactory{}
}

// OpenDevice opens the configured device
func (f *DefaultDeviceFactory) OpenDevice(cfg device.Config, trackWear bool) (device.Device, *device.WearCounter, error) {
	dev, err := device.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	if !trackWear {
		return dev, nil, nil
	}
	wc := device.NewWearCounter(dev)
	return wc, wc, nil
}

// Container holds all the dependencies for the application
type Container struct {
	deviceFactory DeviceFactory
	serverFactory api.ServerFactory
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		deviceFactory: NewDeviceFactory(),
		serverFactory: api.NewServerFactory(),
	}
}

// GetDeviceFactory returns the device factory
func (c *Container) GetDeviceFactory() DeviceFactory {
	return c.deviceFactory
}

// GetServerFactory returns the server factory
func (c *Container) GetServerFactory() api.ServerFactory {
	return c.serverFactory
}

// SetDeviceFactory allows overriding the device factory (for testing)
func (c *Container) SetDeviceFactory(factory DeviceFactory) {
	c.deviceFactory = factory
}

// SetServerFactory allows overriding the server factory (for testing)
func (c *Container) SetServerFactory(factory api.ServerFactory) {
	c.serverFactory = factory
}
