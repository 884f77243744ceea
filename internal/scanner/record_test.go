package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitushen/hostsummary/internal/hostdata"
	"github.com/hitushen/hostsummary/internal/targets"
)

func TestOpenPortLabel(t *testing.T) {
	tests := []struct {
		port OpenPort
		want string
	}{
		{OpenPort{Number: 22, Product: "OpenSSH", Version: "9.6"}, "OpenSSH 9.6"},
		{OpenPort{Number: 22, Product: "OpenSSH"}, "OpenSSH"},
		{OpenPort{Number: 8081, Name: "http"}, "http"},
		{OpenPort{Number: 6379}, "redis"},
		{OpenPort{Number: 40000}, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.port.Label())
	}
}

func TestPortLabels(t *testing.T) {
	labels := portLabels([]OpenPort{
		{Number: 22, Product: "OpenSSH", Version: "9.6"},
		{Number: 443, Name: "https"},
		{Number: 40000},
	})
	assert.Equal(t, []string{"22/OpenSSH 9.6", "443/https", "40000"}, labels)
	assert.Empty(t, portLabels(nil))
}

func TestRecord(t *testing.T) {
	target := targets.Target{Host: "scanme.example", IPs: []string{"192.0.2.10"}}
	record, err := Record(target, []OpenPort{
		{Number: 22, Name: "ssh", Product: "OpenSSH", Version: "9.6"},
		{Number: 3306},
		{Number: 40000, Banner: "custom daemon"},
		{Number: 0, Name: "bogus"},
	})
	require.NoError(t, err)

	host, err := hostdata.Normalize(record)
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.10", host.HostID)
	assert.Equal(t, []int{22, 3306, 40000}, host.Ports)
	require.Len(t, host.Services, 3)

	assert.Equal(t, "ssh", host.Services[0].Protocol)
	require.Len(t, host.Services[0].Software, 1)
	assert.Equal(t, "OpenSSH", host.Services[0].Software[0].Product)
	assert.Equal(t, "9.6", host.Services[0].Software[0].Version)
	assert.Equal(t, "mysql", host.Services[1].Protocol)
	assert.Equal(t, "unknown", host.Services[2].Protocol)
	assert.Equal(t, "custom daemon", host.Services[2].Banner)
}

func TestRecord_NoOpenPorts(t *testing.T) {
	record, err := Record(targets.Target{Host: "10.0.0.9", IPs: []string{"10.0.0.9"}}, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ip":"10.0.0.9","services":[]}`, string(record))
}

func TestPortList(t *testing.T) {
	assert.Equal(t, DefaultPorts, portList(nil))
	assert.Equal(t, "22,80,443", portList([]int{22, 80, 443}))
}
