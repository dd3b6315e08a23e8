package config

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/mobcan/mobcan"
	"github.com/mobcan/mobcan/pkg/can"
	"github.com/mobcan/mobcan/pkg/hw"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

const fullConfig = `
[controller]
mobs = 8
revision = 2.0A
bt1 = 0x06
bt2 = 0x0C
bt3 = 0x37

[transmit]
id = 0x7E0
queue_capacity = 4
overflow = drop-oldest

[receive]
max_read_retries = 5

[filter.10]
id = 0x300

[filter.2]
id = 0x100
mask = 0x700

[filter.0]
id = 0

[bus]
interface = socketcanv2
channel = vcan0

[log]
level = debug
`

func TestParseFull(t *testing.T) {
	file, err := Parse([]byte(fullConfig))
	assert.Nil(t, err)
	assert.Equal(t, 8, file.Mobs)
	assert.Equal(t, can.Rev2A, file.Driver.Revision)
	assert.Equal(t, hw.Timing{BT1: 0x06, BT2: 0x0C, BT3: 0x37}, file.Driver.Timing)
	assert.EqualValues(t, 0x7E0, file.TxID)
	assert.Equal(t, 4, file.Driver.QueueCapacity)
	assert.Equal(t, mobcan.OverflowDropOldest, file.Driver.Overflow)
	assert.Equal(t, 5, file.Driver.MaxReadRetries)
	assert.Equal(t, Bus{Interface: "socketcanv2", Channel: "vcan0"}, file.Bus)
	assert.Equal(t, log.DebugLevel, file.LogLevel)
	assert.Equal(t, []Filter{
		{ID: 0},
		{ID: 0x100, Mask: 0x700, HasMask: true},
		{ID: 0x300},
	}, file.Filters)
}

func TestParseEmptyUsesDefaults(t *testing.T) {
	file, err := Parse([]byte(""))
	assert.Nil(t, err)
	assert.Equal(t, Default(), file)
	assert.Equal(t, hw.DefaultMobCount, file.Mobs)
	assert.Equal(t, mobcan.DefaultConfig(), file.Driver)
	assert.Len(t, file.Filters, 0)
}

func TestParseErrors(t *testing.T) {
	tests := map[string]struct {
		raw      string
		contains string
	}{
		"bad mobs":      {"[controller]\nmobs = many", "[controller] mobs"},
		"bad revision":  {"[controller]\nrevision = 3.0", "[controller] revision"},
		"timing range":  {"[controller]\nbt1 = 0x100", "[controller] bt1"},
		"tx id range":   {"[transmit]\nid = 0x20000000", "[transmit] id"},
		"bad overflow":  {"[transmit]\noverflow = block", "[transmit] overflow"},
		"bad retries":   {"[receive]\nmax_read_retries = -", "[receive] max_read_retries"},
		"missing id":    {"[filter.0]\nmask = 0x7FF", "[filter.0] id"},
		"bad mask":      {"[filter.1]\nid = 1\nmask = zz", "[filter.1] mask"},
		"bad log level": {"[log]\nlevel = loud", "[log] level"},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(test.raw))
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), test.contains)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mobcan.ini")
	assert.Nil(t, os.WriteFile(path, []byte("[transmit]\nid = "+strconv.Itoa(0x55)), 0o644))
	file, err := Load(path)
	assert.Nil(t, err)
	assert.EqualValues(t, 0x55, file.TxID)

	_, err = Load(filepath.Join(t.TempDir(), "missing.ini"))
	assert.Error(t, err)
}
