// Package config loads the mobcan INI configuration file
package config

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/mobcan/mobcan"
	"github.com/mobcan/mobcan/internal/fifo"
	"github.com/mobcan/mobcan/pkg/can"
	"github.com/mobcan/mobcan/pkg/hw"
	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
)

const (
	DefaultTxID      = 0x001
	DefaultInterface = "virtual"
	DefaultChannel   = "localhost:18888"
)

// A [filter.N] section
type Filter struct {
	ID      uint32
	Mask    uint32
	HasMask bool
}

type Bus struct {
	Interface string
	Channel   string
}

// File is the parsed configuration
type File struct {
	Driver   mobcan.Config
	TxID     uint32
	Mobs     int
	Filters  []Filter
	Bus      Bus
	LogLevel log.Level
}

// Default returns the configuration used when no file is given
func Default() *File {
	return &File{
		Driver:   mobcan.DefaultConfig(),
		TxID:     DefaultTxID,
		Mobs:     hw.DefaultMobCount,
		Bus:      Bus{Interface: DefaultInterface, Channel: DefaultChannel},
		LogLevel: log.InfoLevel,
	}
}

// Load a configuration file from disk
func Load(path string) (*File, error) {
	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	return parse(iniFile)
}

// Parse a configuration from its raw content
func Parse(raw []byte) (*File, error) {
	iniFile, err := ini.Load(raw)
	if err != nil {
		return nil, err
	}
	return parse(iniFile)
}

var matchFilterRegExp = regexp.MustCompile(`^filter\.([0-9]+)$`)

func parse(iniFile *ini.File) (*File, error) {
	file := Default()
	var err error

	controller := iniFile.Section("controller")
	if file.Mobs, err = parseInt(controller, "mobs", file.Mobs); err != nil {
		return nil, err
	}
	if controller.HasKey("revision") {
		file.Driver.Revision, err = can.ParseRevision(controller.Key("revision").Value())
		if err != nil {
			return nil, fmt.Errorf("[controller] revision : %w", err)
		}
	}
	for _, bt := range []struct {
		name  string
		value *uint8
	}{
		{"bt1", &file.Driver.Timing.BT1},
		{"bt2", &file.Driver.Timing.BT2},
		{"bt3", &file.Driver.Timing.BT3},
	} {
		value, err := parseUint(controller, bt.name, uint64(*bt.value), 8)
		if err != nil {
			return nil, err
		}
		*bt.value = uint8(value)
	}

	transmit := iniFile.Section("transmit")
	txID, err := parseUint(transmit, "id", uint64(file.TxID), 29)
	if err != nil {
		return nil, err
	}
	file.TxID = uint32(txID)
	if file.Driver.QueueCapacity, err = parseInt(transmit, "queue_capacity", file.Driver.QueueCapacity); err != nil {
		return nil, err
	}
	if transmit.HasKey("overflow") {
		file.Driver.Overflow, err = fifo.ParsePolicy(transmit.Key("overflow").Value())
		if err != nil {
			return nil, fmt.Errorf("[transmit] overflow : %w", err)
		}
	}

	receive := iniFile.Section("receive")
	if file.Driver.MaxReadRetries, err = parseInt(receive, "max_read_retries", file.Driver.MaxReadRetries); err != nil {
		return nil, err
	}

	bus := iniFile.Section("bus")
	file.Bus.Interface = bus.Key("interface").MustString(file.Bus.Interface)
	file.Bus.Channel = bus.Key("channel").MustString(file.Bus.Channel)

	logSection := iniFile.Section("log")
	if logSection.HasKey("level") {
		file.LogLevel, err = log.ParseLevel(logSection.Key("level").Value())
		if err != nil {
			return nil, fmt.Errorf("[log] level : %w", err)
		}
	}

	file.Filters, err = parseFilters(iniFile)
	if err != nil {
		return nil, err
	}
	return file, nil
}

// Filter sections are ordered by their suffix, which is their priority
func parseFilters(iniFile *ini.File) ([]Filter, error) {
	type numbered struct {
		number uint64
		filter Filter
	}
	parsed := make([]numbered, 0)
	for _, section := range iniFile.Sections() {
		match := matchFilterRegExp.FindStringSubmatch(section.Name())
		if match == nil {
			continue
		}
		number, err := strconv.ParseUint(match[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("[%v] : %w", section.Name(), err)
		}
		if !section.HasKey("id") {
			return nil, fmt.Errorf("[%v] id : missing", section.Name())
		}
		id, err := parseUint(section, "id", 0, 29)
		if err != nil {
			return nil, err
		}
		filter := Filter{ID: uint32(id)}
		if section.HasKey("mask") {
			mask, err := parseUint(section, "mask", 0, 29)
			if err != nil {
				return nil, err
			}
			filter.Mask = uint32(mask)
			filter.HasMask = true
		}
		parsed = append(parsed, numbered{number: number, filter: filter})
	}
	sort.SliceStable(parsed, func(i, j int) bool { return parsed[i].number < parsed[j].number })
	filters := make([]Filter, len(parsed))
	for i, p := range parsed {
		filters[i] = p.filter
	}
	return filters, nil
}

// Parse an unsigned value, decimal or 0x prefixed hexadecimal
func parseUint(section *ini.Section, name string, defaultValue uint64, bitSize int) (uint64, error) {
	if !section.HasKey(name) {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(section.Key(name).Value(), 0, bitSize)
	if err != nil {
		return 0, fmt.Errorf("[%v] %v : %w", section.Name(), name, err)
	}
	return value, nil
}

func parseInt(section *ini.Section, name string, defaultValue int) (int, error) {
	if !section.HasKey(name) {
		return defaultValue, nil
	}
	value, err := strconv.ParseInt(section.Key(name).Value(), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("[%v] %v : %w", section.Name(), name, err)
	}
	return int(value), nil
}
