package power

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
)

// DefaultSysfsRoot is where the kernel exposes power supply state.
const DefaultSysfsRoot = "/sys/class/power_supply"

// SysfsProbe reads charger state from the kernel power-supply class.
type SysfsProbe struct {
	root string
}

// NewSysfsProbe constructs a probe rooted at the supplied directory. An empty
// root uses DefaultSysfsRoot.
func NewSysfsProbe(root string) *SysfsProbe {
	if root == "" {
		root = DefaultSysfsRoot
	}
	return &SysfsProbe{root: root}
}

// Connected reports whether any mains or USB supply is online.
func (p *SysfsProbe) Connected(ctx context.Context) (bool, error) {
	entries, err := os.ReadDir(p.root)
	if err != nil {
		return false, err
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		supply := filepath.Join(p.root, entry.Name())
		kind, err := os.ReadFile(filepath.Join(supply, "type"))
		if err != nil {
			continue
		}
		switch strings.TrimSpace(string(kind)) {
		case "Mains", "USB", "Wireless":
		default:
			continue
		}

		online, err := os.ReadFile(filepath.Join(supply, "online"))
		if err != nil {
			continue
		}
		if bytes.Equal(bytes.TrimSpace(online), []byte("1")) {
			return true, nil
		}
	}

	return false, nil
}
