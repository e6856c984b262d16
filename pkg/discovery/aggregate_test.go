package discovery

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func e131Record(instance string, addrs ...string) record {
	return record{
		service:   ServiceTypeE131,
		instance:  instance,
		host:      instance + ".local.",
		port:      5568,
		text:      []string{"TxtVers=1", "ComCompliant=Y", "Model=ESPixelStick", "Manuf=Forkineye"},
		addresses: addrs,
	}
}

func httpRecord(instance string, port int, addrs ...string) record {
	return record{
		service:   ServiceTypeHTTP,
		instance:  instance,
		host:      instance + ".local.",
		port:      port,
		addresses: addrs,
	}
}

func TestAggregatorReportsOnceModelKnown(t *testing.T) {
	agg := newAggregator()

	// The web service alone is not enough.
	d, report := agg.add(httpRecord("esps-porch", 80, "10.0.0.5"))
	assert.False(t, report)
	assert.Nil(t, d)

	d, report = agg.add(e131Record("esps-porch", "10.0.0.5"))
	require.True(t, report)
	assert.Equal(t, "esps-porch", d.Instance)
	assert.Equal(t, "ESPixelStick", d.Model)
	assert.Equal(t, "Forkineye", d.Manufacturer)
	assert.True(t, d.HasHTTP)
	assert.Equal(t, uint16(80), d.Port)
	assert.Equal(t, "ws://10.0.0.5/ws", d.URL())

	// Repeats of the same announcement are quiet.
	_, report = agg.add(e131Record("esps-porch", "10.0.0.5"))
	assert.False(t, report)
}

func TestAggregatorReportsPortChange(t *testing.T) {
	agg := newAggregator()

	d, report := agg.add(e131Record("esps-tree", "10.0.0.7"))
	require.True(t, report)
	assert.Equal(t, uint16(0), d.Port)
	assert.Equal(t, "ws://10.0.0.7/ws", d.URL())

	d, report = agg.add(httpRecord("esps-tree", 8080, "10.0.0.7"))
	require.True(t, report)
	assert.Equal(t, "ws://10.0.0.7:8080/ws", d.URL())
}

func TestAggregatorIgnoresOtherModels(t *testing.T) {
	agg := newAggregator()

	r := e131Record("wled-strip", "10.0.0.9")
	r.text = []string{"Model=WLED"}
	_, report := agg.add(r)
	assert.False(t, report)

	_, report = agg.add(record{service: ServiceTypeE131})
	assert.False(t, report, "records without an instance are dropped")

	assert.Empty(t, agg.ready())
}

func TestAggregatorMergesAndRemovesAddresses(t *testing.T) {
	agg := newAggregator()

	agg.add(e131Record("esps-garage", "10.0.0.8"))
	agg.add(e131Record("esps-garage", "fe80::1", "10.0.0.8"))

	ready := agg.ready()
	require.Len(t, ready, 1)
	assert.Equal(t, []string{"10.0.0.8", "fe80::1"}, ready[0].Addresses)

	agg.remove(e131Record("esps-garage", "10.0.0.8"))
	ready = agg.ready()
	require.Len(t, ready, 1)
	assert.Equal(t, []string{"fe80::1"}, ready[0].Addresses)
	assert.Equal(t, "ws://[fe80::1]/ws", ready[0].URL())

	agg.remove(e131Record("esps-garage", "fe80::1"))
	assert.Empty(t, agg.ready())

	// Unknown instances are ignored.
	agg.remove(e131Record("esps-unknown", "10.0.0.1"))
}

func TestAggregatorReadySortedCopies(t *testing.T) {
	agg := newAggregator()
	agg.add(e131Record("esps-b", "10.0.0.2"))
	agg.add(e131Record("esps-a", "10.0.0.1"))

	ready := agg.ready()
	require.Len(t, ready, 2)
	assert.Equal(t, "esps-a", ready[0].Instance)
	assert.Equal(t, "esps-b", ready[1].Instance)

	ready[0].Addresses[0] = "changed"
	assert.Equal(t, "10.0.0.1", agg.ready()[0].Addresses[0])
}

func TestAddressStrings(t *testing.T) {
	got := addressStrings(
		[]net.IP{net.ParseIP("192.168.1.20")},
		[]net.IP{net.ParseIP("fe80::2")},
	)
	assert.Equal(t, []string{"192.168.1.20", "fe80::2"}, got)
}
