// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package radio implements the link radio contract on a BLE adapter,
// exposing a Nordic UART style service as the bidirectional data channel.
package radio

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"github.com/relabs-tech/headtrack/internal/fault"
	"github.com/relabs-tech/headtrack/internal/link"
)

// Bluetooth is a BLE peripheral. The host adapter has no sleep state, so
// Start and Wakeup complete immediately and report through events.
type Bluetooth struct {
	adapter *bluetooth.Adapter
	logger  *log.Entry

	mu         sync.Mutex
	name       string
	onEvent    func(link.Event)
	onRegister func() error
	adv        *bluetooth.Advertisement
	tx         bluetooth.Characteristic
	registered bool

	sendq chan []byte
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewBluetooth uses the default adapter of the host.
func NewBluetooth() *Bluetooth {
	return &Bluetooth{
		adapter: bluetooth.DefaultAdapter,
		logger:  log.WithField("component", "radio"),
	}
}

func (b *Bluetooth) Initialize(onEvent func(link.Event), onRegister func() error) error {
	if onEvent == nil || onRegister == nil {
		return fmt.Errorf("radio: callbacks are required: %w", fault.ErrInvalidArgument)
	}
	if err := b.adapter.Enable(); err != nil {
		return fmt.Errorf("radio: enable adapter: %w", err)
	}

	b.mu.Lock()
	b.onEvent = onEvent
	b.onRegister = onRegister
	b.mu.Unlock()

	b.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		kind := link.PeerDisconnected
		if connected {
			kind = link.PeerConnected
		}
		b.logger.WithField("peer", device.Address.String()).Infof("peer %v", kind)
		b.emit(link.Event{Kind: kind})
	})
	b.logger.Println("bluetooth adapter enabled")
	return nil
}

func (b *Bluetooth) SetDeviceName(name string) error {
	b.mu.Lock()
	b.name = name
	b.mu.Unlock()
	return nil
}

// Start registers the services, starts advertising and the sender goroutine.
func (b *Bluetooth) Start() error {
	b.mu.Lock()
	register, name := b.onRegister, b.name
	b.mu.Unlock()
	if register == nil {
		return fmt.Errorf("radio: start: %w", fault.ErrNotInitialized)
	}
	if err := register(); err != nil {
		return err
	}

	adv := b.adapter.DefaultAdvertisement()
	err := adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    name,
		ServiceUUIDs: []bluetooth.UUID{bluetooth.ServiceUUIDNordicUART},
	})
	if err != nil {
		return fmt.Errorf("radio: configure advertisement: %w", err)
	}
	if err := adv.Start(); err != nil {
		return fmt.Errorf("radio: start advertising: %w", err)
	}

	b.mu.Lock()
	b.adv = adv
	b.sendq = make(chan []byte, 1)
	b.done = make(chan struct{})
	sendq, done := b.sendq, b.done
	b.mu.Unlock()

	b.wg.Add(1)
	go b.sender(sendq, done)

	b.logger.WithField("name", name).Info("advertising")
	b.emit(link.Event{Kind: link.Started})
	return nil
}

func (b *Bluetooth) Wakeup() error {
	b.emit(link.Event{Kind: link.WakeupSucceeded})
	return nil
}

// RegisterDataChannel adds the UART service: RX receives writes from the
// peer, TX notifies tracking records.
func (b *Bluetooth) RegisterDataChannel() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.registered {
		return nil
	}

	var rx bluetooth.Characteristic
	err := b.adapter.AddService(&bluetooth.Service{
		UUID: bluetooth.ServiceUUIDNordicUART,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle: &rx,
				UUID:   bluetooth.CharacteristicUUIDUARTRX,
				Flags:  bluetooth.CharacteristicWritePermission | bluetooth.CharacteristicWriteWithoutResponsePermission,
				WriteEvent: func(_ bluetooth.Connection, _ int, value []byte) {
					b.emit(link.Event{Kind: link.Received, Data: append([]byte(nil), value...)})
				},
			},
			{
				Handle: &b.tx,
				UUID:   bluetooth.CharacteristicUUIDUARTTX,
				Flags:  bluetooth.CharacteristicNotifyPermission | bluetooth.CharacteristicReadPermission,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("radio: add uart service: %w", err)
	}
	b.registered = true
	return nil
}

// SendAsync hands payload to the sender goroutine. The link keeps at most
// one send outstanding, so a full queue means the previous one never
// completed.
func (b *Bluetooth) SendAsync(payload []byte) error {
	b.mu.Lock()
	sendq := b.sendq
	b.mu.Unlock()
	if sendq == nil {
		return fmt.Errorf("radio: send: %w", fault.ErrNotInitialized)
	}
	select {
	case sendq <- payload:
		return nil
	default:
		return fmt.Errorf("radio: send queue full: %w", fault.ErrResourceExhausted)
	}
}

func (b *Bluetooth) sender(sendq <-chan []byte, done <-chan struct{}) {
	defer b.wg.Done()
	for {
		select {
		case <-done:
			return
		case p := <-sendq:
			_, err := b.tx.Write(p)
			b.emit(link.Event{Kind: link.Sent, Err: err})
		}
	}
}

func (b *Bluetooth) Deinitialize() error {
	b.mu.Lock()
	adv, done := b.adv, b.done
	b.adv, b.done, b.sendq = nil, nil, nil
	b.onEvent, b.onRegister = nil, nil
	b.mu.Unlock()

	if done != nil {
		close(done)
		b.wg.Wait()
	}
	if adv != nil {
		if err := adv.Stop(); err != nil {
			return fmt.Errorf("radio: stop advertising: %w", err)
		}
	}
	return nil
}

func (b *Bluetooth) emit(ev link.Event) {
	b.mu.Lock()
	fn := b.onEvent
	b.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}
