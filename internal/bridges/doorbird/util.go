package doorbird

import (
	"fmt"
	"slices"
	"strings"
)

// MACAddress returns the station's MAC from its info: the wired address
// when present, else the Wi-Fi one, else "".
func MACAddress(info map[string]any) string {
	for _, key := range []string{infoPrimaryMAC, infoWiFiMAC} {
		if mac, ok := info[key].(string); ok && mac != "" {
			return mac
		}
	}
	return ""
}

// relays lists the relay ids in info, e.g. ["1", "gggaaa@1"].
func relays(info map[string]any) []string {
	switch v := info[infoRelays].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, r := range v {
			out = append(out, fmt.Sprint(r))
		}
		return out
	default:
		return nil
	}
}

func infoString(info map[string]any, key string) string {
	s, _ := info[key].(string)
	return s
}

// AllDoorStations returns every registered session sorted by name.
// Call it on the loop.
func (i *Integration) AllDoorStations() []*ConfiguredDoorBird {
	out := make([]*ConfiguredDoorBird, 0, len(i.state.entries))
	for _, reg := range i.state.entries {
		out = append(out, reg.Session)
	}
	slices.SortFunc(out, func(a, b *ConfiguredDoorBird) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return out
}
