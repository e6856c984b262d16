package discovery

import (
	"net"
	"sort"
)

// record is one announcement, independent of the mDNS library.
type record struct {
	service   string
	instance  string
	host      string
	port      int
	text      []string
	addresses []string
}

func addressStrings(v4, v6 []net.IP) []string {
	addrs := make([]string, 0, len(v4)+len(v6))
	for _, ip := range v4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range v6 {
		addrs = append(addrs, ip.String())
	}
	return addrs
}

// aggregator combines the announcements of both services into devices,
// keyed by instance name.
type aggregator struct {
	devices map[string]*Device
}

func newAggregator() *aggregator {
	return &aggregator{devices: make(map[string]*Device)}
}

// add folds r into its device. It returns a copy of the device when it
// should be reported: the first time it is known to be an ESPixelStick,
// and again whenever its web port changes.
func (a *aggregator) add(r record) (*Device, bool) {
	if r.instance == "" {
		return nil, false
	}
	d, found := a.devices[r.instance]
	if !found {
		d = &Device{Instance: r.instance}
		a.devices[r.instance] = d
	}
	wasReady := d.IsESPixelStick
	oldPort := d.Port

	if r.host != "" {
		d.Host = r.host
	}
	d.Addresses = mergeAddresses(d.Addresses, r.addresses)

	switch r.service {
	case ServiceTypeE131:
		txt := ParseTXT(r.text)
		if model := txt[TXTKeyModel]; model != "" {
			d.Model = model
			d.IsESPixelStick = model == ModelESPixelStick
		}
		if manuf := txt[TXTKeyManuf]; manuf != "" {
			d.Manufacturer = manuf
		}
	case ServiceTypeHTTP:
		d.HasHTTP = true
		if r.port > 0 && r.port <= 0xffff {
			d.Port = uint16(r.port)
		}
	}

	if !d.IsESPixelStick {
		return nil, false
	}
	if !wasReady || d.Port != oldPort {
		return d.clone(), true
	}
	return nil, false
}

// remove drops the addresses r announced. A device without addresses is
// forgotten.
func (a *aggregator) remove(r record) {
	d, found := a.devices[r.instance]
	if !found {
		return
	}
	d.Addresses = removeAddresses(d.Addresses, r.addresses)
	if len(d.Addresses) == 0 {
		delete(a.devices, r.instance)
	}
}

// ready returns copies of every ESPixelStick seen, sorted by instance.
func (a *aggregator) ready() []*Device {
	out := make([]*Device, 0, len(a.devices))
	for _, d := range a.devices {
		if d.IsESPixelStick {
			out = append(out, d.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instance < out[j].Instance })
	return out
}

func (d *Device) clone() *Device {
	c := *d
	c.Addresses = append([]string(nil), d.Addresses...)
	return &c
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses filters gone out of addresses.
func removeAddresses(addresses, gone []string) []string {
	toRemove := make(map[string]bool, len(gone))
	for _, addr := range gone {
		toRemove[addr] = true
	}
	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}
