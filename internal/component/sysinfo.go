package component

import (
	"context"
	"fmt"
	"sync"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// DeviceInfoName is the component name of the device information interface.
const DeviceInfoName = "deviceInformation"

// SystemInfo is the static description of the host.
type SystemInfo struct {
	OSName                string
	ProcessorArchitecture string
	ProcessorManufacturer string
	TotalStorage          uint64
	TotalMemory           uint64
}

// SystemProbe inspects the host the agent runs on.
type SystemProbe interface {
	Info(ctx context.Context) (SystemInfo, error)

	// CPUPercent returns overall CPU usage since the previous call.
	CPUPercent(ctx context.Context) (float64, error)
}

// HostProbe implements SystemProbe with gopsutil.
type HostProbe struct {
	// StoragePath is the mount point whose size is reported. Defaults to "/".
	StoragePath string
}

// Info gathers OS, processor, storage and memory details.
func (p HostProbe) Info(ctx context.Context) (SystemInfo, error) {
	h, err := host.InfoWithContext(ctx)
	if err != nil {
		return SystemInfo{}, fmt.Errorf("reading host info: %w", err)
	}

	info := SystemInfo{
		OSName:                h.OS,
		ProcessorArchitecture: h.KernelArch,
	}

	if cpus, err := cpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 {
		info.ProcessorManufacturer = cpus[0].VendorID
	}

	path := p.StoragePath
	if path == "" {
		path = "/"
	}
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return SystemInfo{}, fmt.Errorf("reading disk usage of %s: %w", path, err)
	}
	info.TotalStorage = usage.Total

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return SystemInfo{}, fmt.Errorf("reading memory: %w", err)
	}
	info.TotalMemory = vm.Total

	return info, nil
}

// CPUPercent returns overall CPU usage since the previous call.
func (HostProbe) CPUPercent(ctx context.Context) (float64, error) {
	pct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, fmt.Errorf("reading cpu usage: %w", err)
	}
	if len(pct) == 0 {
		return 0, nil
	}
	return pct[0], nil
}

// DeviceIdentity is the configured description of the device.
type DeviceIdentity struct {
	Manufacturer string
	Model        string
	SWVersion    string
}

// DeviceInfo is the deviceInformation interface of the root device. Its
// telemetry is CPU usage; its reported properties describe the host.
type DeviceInfo struct {
	identity DeviceIdentity
	probe    SystemProbe

	mu   sync.Mutex
	info *SystemInfo
}

// NewDeviceInfo returns the device information component. A nil probe
// uses HostProbe.
func NewDeviceInfo(identity DeviceIdentity, probe SystemProbe) *DeviceInfo {
	if probe == nil {
		probe = HostProbe{}
	}
	return &DeviceInfo{identity: identity, probe: probe}
}

func (d *DeviceInfo) Name() string { return DeviceInfoName }
func (d *DeviceInfo) Kind() Kind   { return KindCompositeInfo }

// Read returns {"cpu": percent}.
func (d *DeviceInfo) Read(ctx context.Context) (Values, error) {
	pct, err := d.probe.CPUPercent(ctx)
	if err != nil {
		return nil, err
	}
	return Values{"cpu": pct}, nil
}

// Load gathers the host description once. ReportedProperties carries only
// the configured identity until Load succeeds.
func (d *DeviceInfo) Load(ctx context.Context) error {
	info, err := d.probe.Info(ctx)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.info = &info
	d.mu.Unlock()
	return nil
}

func (d *DeviceInfo) ReportedProperties() map[string]any {
	props := map[string]any{
		"swVersion":    d.identity.SWVersion,
		"manufacturer": d.identity.Manufacturer,
		"model":        d.identity.Model,
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.info != nil {
		props["osName"] = d.info.OSName
		props["processorArchitecture"] = d.info.ProcessorArchitecture
		props["processorManufacturer"] = d.info.ProcessorManufacturer
		props["totalStorage"] = d.info.TotalStorage
		props["totalMemory"] = d.info.TotalMemory
	}
	return props
}
