package wearlevel_test

import (
	"fmt"
	"log"

	"github.com/ssargent/wearlevel/pkg/device"
	"github.com/ssargent/wearlevel/pkg/wearlevel"
)

// ExampleStore demonstrates provisioning a device and round-tripping a record
func ExampleStore() {
	dev := device.NewMemory(1024)

	store, err := wearlevel.NewStore(dev)
	if err != nil {
		log.Fatal(err)
	}

	// One-time provisioning
	if err := store.Format(); err != nil {
		log.Fatal(err)
	}

	// On every power-up
	result, err := store.Init()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Marker found: %v at %d\n", result.Found, result.Address)

	if err := store.Write([]byte{0x01, 0x02, 0x03}); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Base address: %d\n", store.BaseAddress())

	buf := make([]byte, 3)
	if err := store.Read(buf); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Payload: %v\n", buf)

	// Output:
	// Marker found: true at 0
	// Base address: 1
	// Payload: [1 2 3]
}

// ExampleStore_wearSpreading shows writes landing on successive addresses
func ExampleStore_wearSpreading() {
	wc := device.NewWearCounter(device.NewMemory(64))

	store, err := wearlevel.NewStore(wc)
	if err != nil {
		log.Fatal(err)
	}
	if _, err := store.Init(); err != nil {
		log.Fatal(err)
	}

	for i := 0; i < 200; i++ {
		if err := store.Write([]byte{byte(i), 0, 0, 0}); err != nil {
			log.Fatal(err)
		}
	}

	report := wc.Wear(0)
	fmt.Printf("Total writes: %d\n", report.TotalWrites)
	fmt.Printf("Hottest cell: %d writes\n", report.MaxWrites)
	fmt.Printf("Wraparounds: %d\n", store.Stats().Wraparounds)

	// Output:
	// Total writes: 2000
	// Hottest cell: 40 writes
	// Wraparounds: 3
}
