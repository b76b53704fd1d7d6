// Package gpu reports the accelerators visible to the host, for the admin
// dashboard and the startup log of an inference node.
package gpu

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

const sysfsDRM = "/sys/class/drm"

// Device is one DRM card with VRAM accounting
type Device struct {
	Card      string `json:"card"`
	Vendor    string `json:"vendor"`
	PCIID     string `json:"pci_id"`
	VRAMTotal int64  `json:"vram_total"` // bytes
	VRAMFree  int64  `json:"vram_free"`  // bytes, 0 if unknown
	Driver    string `json:"driver"`
}

var vendors = map[string]string{
	"10de": "NVIDIA",
	"1002": "AMD",
	"8086": "Intel",
}

var (
	cached     []Device
	detectOnce sync.Once
)

// Detect scans the host once and caches the result
func Detect() []Device {
	detectOnce.Do(func() {
		cached = Scan(sysfsDRM)
		if len(cached) == 0 {
			log.Printf("[gpu] no cards with VRAM info found, engines run on CPU or remote hosts")
			return
		}
		for _, d := range cached {
			log.Printf("[gpu] %s: %s %s vram_total=%d MB driver=%s",
				d.Card, d.Vendor, d.PCIID, d.VRAMTotal/1024/1024, d.Driver)
		}
	})
	return cached
}

// Scan lists cards under a sysfs drm directory that expose VRAM totals
func Scan(root string) []Device {
	cards, err := filepath.Glob(filepath.Join(root, "card[0-9]*"))
	if err != nil {
		return nil
	}

	devices := []Device{}
	for _, card := range cards {
		name := filepath.Base(card)
		// connectors look like card0-HDMI-A-1
		if strings.Contains(name, "-") {
			continue
		}
		dir := filepath.Join(card, "device")
		total, err := readInt(filepath.Join(dir, "mem_info_vram_total"))
		if err != nil || total == 0 {
			continue
		}

		d := Device{Card: name, VRAMTotal: total}
		if used, err := readInt(filepath.Join(dir, "mem_info_vram_used")); err == nil && used > 0 {
			d.VRAMFree = total - used
		}
		d.PCIID, d.Vendor = pciIdentity(dir)
		if link, err := os.Readlink(filepath.Join(dir, "driver")); err == nil {
			d.Driver = filepath.Base(link)
		}
		devices = append(devices, d)
	}
	return devices
}

func readInt(path string) (int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
}

// pciIdentity reads PCI_ID from uevent and names the vendor
func pciIdentity(deviceDir string) (id, vendor string) {
	data, err := os.ReadFile(filepath.Join(deviceDir, "uevent"))
	if err != nil {
		return "", "unknown"
	}
	for _, line := range strings.Split(string(data), "\n") {
		v, ok := strings.CutPrefix(strings.TrimSpace(line), "PCI_ID=")
		if !ok {
			continue
		}
		id = strings.ToLower(v)
		vendorID, _, _ := strings.Cut(id, ":")
		if name, ok := vendors[vendorID]; ok {
			return id, name
		}
		return id, "vendor " + vendorID
	}
	return "", "unknown"
}
