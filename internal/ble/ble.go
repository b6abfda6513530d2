package ble

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"
)

var Adapter = bluetooth.DefaultAdapter

const (
	defaultScanWindow = 8 * time.Second
	scanStopGrace     = 2 * time.Second
)

var (
	scanMu          sync.Mutex
	scanInProgress  bool
	ErrScanBusy     = errors.New("bluetooth scan already in progress")
	ErrScanTimeout  = errors.New("bluetooth scan timed out while stopping")
	ErrNotConnected = errors.New("printer not connected")
)

type ScanHit struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	RSSI    int16  `json:"rssi"`
}

type CharacteristicInfo struct {
	UUID                 string `json:"uuid"`
	Write                bool   `json:"write"`
	WriteWithoutResponse bool   `json:"write_without_response"`
	Notify               bool   `json:"notify"`
	Read                 bool   `json:"read"`
}

type ServiceInfo struct {
	UUID            string               `json:"uuid"`
	Characteristics []CharacteristicInfo `json:"characteristics"`
}

type DescribeResult struct {
	Services []ServiceInfo `json:"services"`
}

type Client struct {
	mu        sync.Mutex
	dev       bluetooth.Device
	connected bool
}

func Enable() error { return Adapter.Enable() }

// Scan listens for advertisements until window elapses or ctx is done and
// returns one hit per device whose name contains nameContains
// (case-insensitive), strongest signal first. Only one scan may run at a
// time; a concurrent call gets ErrScanBusy.
func Scan(ctx context.Context, window time.Duration, nameContains string) ([]ScanHit, error) {
	if window <= 0 {
		window = defaultScanWindow
	}

	scanMu.Lock()
	if scanInProgress {
		scanMu.Unlock()
		return nil, ErrScanBusy
	}
	scanInProgress = true
	scanMu.Unlock()
	defer func() {
		scanMu.Lock()
		scanInProgress = false
		scanMu.Unlock()
	}()

	var (
		seen   = make(map[string]ScanHit)
		seenMu sync.Mutex
	)
	filter := strings.ToLower(nameContains)

	scanDone := make(chan error, 1)
	go func() {
		scanDone <- Adapter.Scan(func(a *bluetooth.Adapter, r bluetooth.ScanResult) {
			hit := ScanHit{Address: r.Address.String(), Name: r.LocalName(), RSSI: r.RSSI}
			if filter != "" && !strings.Contains(strings.ToLower(hit.Name), filter) {
				return
			}
			seenMu.Lock()
			defer seenMu.Unlock()
			if prev, ok := seen[hit.Address]; !ok || hit.RSSI > prev.RSSI {
				if hit.Name == "" {
					hit.Name = prev.Name
				}
				seen[hit.Address] = hit
			}
		})
	}()

	timer := time.NewTimer(window)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	case err := <-scanDone:
		// The adapter gave up before the window closed.
		if err != nil {
			return nil, err
		}
		scanDone <- nil
	}
	_ = Adapter.StopScan()

	select {
	case err := <-scanDone:
		if err != nil {
			return nil, err
		}
	case <-time.After(scanStopGrace):
		return nil, fmt.Errorf("%w after %s scan window", ErrScanTimeout, window)
	}

	seenMu.Lock()
	defer seenMu.Unlock()
	return sortHits(seen), nil
}

func sortHits(seen map[string]ScanHit) []ScanHit {
	out := make([]ScanHit, 0, len(seen))
	for _, hit := range seen {
		out = append(out, hit)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RSSI != out[j].RSSI {
			return out[i].RSSI > out[j].RSSI
		}
		return out[i].Address < out[j].Address
	})
	return out
}

func (c *Client) Connect(address string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cleanAddress, err := NormalizeAddress(address)
	if err != nil {
		return err
	}

	if c.connected {
		_ = c.dev.Disconnect()
		c.connected = false
	}
	a := bluetooth.Address{}
	a.Set(cleanAddress)
	dev, err := Adapter.Connect(a, bluetooth.ConnectionParams{})
	if err != nil {
		return err
	}
	if _, err := dev.DiscoverServices(nil); err != nil {
		_ = dev.Disconnect()
		return fmt.Errorf("connected but could not verify link: %w", err)
	}
	c.dev = dev
	c.connected = true
	return nil
}

// NormalizeAddress accepts colon or dash separated MAC addresses in any
// case and returns the upper case, colon separated form.
func NormalizeAddress(address string) (string, error) {
	cleaned := strings.ToUpper(strings.TrimSpace(address))
	cleaned = strings.ReplaceAll(cleaned, "-", ":")
	parts := strings.Split(cleaned, ":")
	if len(parts) != 6 {
		return "", fmt.Errorf("invalid device address format: %q", address)
	}
	for _, part := range parts {
		if len(part) != 2 {
			return "", fmt.Errorf("invalid device address format: %q", address)
		}
		if _, err := hex.DecodeString(part); err != nil {
			return "", fmt.Errorf("invalid device address format: %q", address)
		}
	}
	return cleaned, nil
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return false
	}
	if _, err := c.dev.DiscoverServices(nil); err != nil {
		_ = c.dev.Disconnect()
		c.connected = false
	}
	return c.connected
}

func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}
	if err := c.dev.Disconnect(); err != nil {
		return err
	}
	c.connected = false
	return nil
}

func (c *Client) Describe() (*DescribeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil, ErrNotConnected
	}
	services, err := c.dev.DiscoverServices(nil)
	if err != nil {
		return nil, err
	}
	out := &DescribeResult{}
	for _, s := range services {
		si := ServiceInfo{UUID: s.UUID().String()}
		chars, err := s.DiscoverCharacteristics(nil)
		if err != nil {
			continue
		}
		for _, ch := range chars {
			props := uint32(ch.Properties())
			si.Characteristics = append(si.Characteristics, CharacteristicInfo{
				UUID:                 ch.UUID().String(),
				Read:                 (props & 0x02) != 0,
				WriteWithoutResponse: (props & 0x04) != 0,
				Write:                (props & 0x08) != 0,
				Notify:               (props & 0x10) != 0,
			})
		}
		out.Services = append(out.Services, si)
	}
	return out, nil
}

// Print writes data to the characteristic in chunks. It stops between
// chunks once ctx is done.
func (c *Client) Print(ctx context.Context, serviceUUID, charUUID string, data []byte, chunkSize int, withResponse bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return ErrNotConnected
	}
	if chunkSize <= 0 {
		chunkSize = 180
	}

	su, err := bluetooth.ParseUUID(serviceUUID)
	if err != nil {
		return fmt.Errorf("service uuid: %w", err)
	}
	cu, err := bluetooth.ParseUUID(charUUID)
	if err != nil {
		return fmt.Errorf("characteristic uuid: %w", err)
	}

	services, err := c.dev.DiscoverServices([]bluetooth.UUID{su})
	if err != nil {
		return err
	}
	if len(services) == 0 {
		return fmt.Errorf("service %s not found", serviceUUID)
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{cu})
	if err != nil {
		return err
	}
	if len(chars) == 0 {
		return fmt.Errorf("characteristic %s not found in service %s", charUUID, serviceUUID)
	}
	ch := chars[0]
	var write func([]byte) (int, error) = ch.WriteWithoutResponse
	if withResponse {
		write = ch.Write
	}

	for i := 0; i < len(data); i += chunkSize {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("print interrupted at byte %d of %d: %w", i, len(data), err)
		}
		end := i + chunkSize
		if end > len(data) {
			end = len(data)
		}
		if _, err := write(data[i:end]); err != nil {
			return fmt.Errorf("write chunk at byte %d: %w", i, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

// Connector sends print jobs through a connected Client.
type Connector struct {
	Client       *Client
	ServiceUUID  string
	CharUUID     string
	ChunkSize    int
	WithResponse bool
}

func (c *Connector) Available(ctx context.Context) error {
	if !c.Client.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

func (c *Connector) Send(ctx context.Context, data []byte) error {
	return c.Client.Print(ctx, c.ServiceUUID, c.CharUUID, data, c.ChunkSize, c.WithResponse)
}
