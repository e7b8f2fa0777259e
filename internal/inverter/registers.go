package inverter

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownRegister indicates a register key with no table entry.
var ErrUnknownRegister = errors.New("unknown register")

// Kind describes how a register's raw bytes decode.
type Kind int

const (
	// KindI16 is a signed 16-bit register.
	KindI16 Kind = iota

	// KindU16 is an unsigned 16-bit register.
	KindU16

	// KindI32 is a signed 32-bit register (two words, big endian).
	KindI32

	// KindU32 is an unsigned 32-bit register (two words, big endian).
	KindU32

	// KindStatus is an unsigned 16-bit register whose value maps to a
	// human-readable device state string.
	KindStatus
)

// Register describes one named holding register.
type Register struct {
	Key      string
	Address  uint16
	Quantity uint16
	Kind     Kind
	Gain     float64 // raw value is divided by Gain; 1 means as-is
	Unit     string
}

// registerTable covers the SUN2000 registers the bridge knows how to read.
// Addresses, widths and gains follow the Huawei Solar Inverter Modbus
// Interface Definitions.
var registerTable = map[string]Register{
	"pv_01_voltage":            {Key: "pv_01_voltage", Address: 32016, Quantity: 1, Kind: KindI16, Gain: 10, Unit: "V"},
	"pv_01_current":            {Key: "pv_01_current", Address: 32017, Quantity: 1, Kind: KindI16, Gain: 100, Unit: "A"},
	"pv_02_voltage":            {Key: "pv_02_voltage", Address: 32018, Quantity: 1, Kind: KindI16, Gain: 10, Unit: "V"},
	"pv_02_current":            {Key: "pv_02_current", Address: 32019, Quantity: 1, Kind: KindI16, Gain: 100, Unit: "A"},
	"input_power":              {Key: "input_power", Address: 32064, Quantity: 2, Kind: KindI32, Gain: 1, Unit: "W"},
	"grid_voltage":             {Key: "grid_voltage", Address: 32066, Quantity: 1, Kind: KindU16, Gain: 10, Unit: "V"},
	"grid_current":             {Key: "grid_current", Address: 32072, Quantity: 2, Kind: KindI32, Gain: 1000, Unit: "A"},
	"day_active_power_peak":    {Key: "day_active_power_peak", Address: 32078, Quantity: 2, Kind: KindI32, Gain: 1, Unit: "W"},
	"active_power":             {Key: "active_power", Address: 32080, Quantity: 2, Kind: KindI32, Gain: 1, Unit: "W"},
	"reactive_power":           {Key: "reactive_power", Address: 32082, Quantity: 2, Kind: KindI32, Gain: 1, Unit: "var"},
	"power_factor":             {Key: "power_factor", Address: 32084, Quantity: 1, Kind: KindI16, Gain: 1000, Unit: ""},
	"grid_frequency":           {Key: "grid_frequency", Address: 32085, Quantity: 1, Kind: KindU16, Gain: 100, Unit: "Hz"},
	"efficiency":               {Key: "efficiency", Address: 32086, Quantity: 1, Kind: KindU16, Gain: 100, Unit: "%"},
	"internal_temperature":     {Key: "internal_temperature", Address: 32087, Quantity: 1, Kind: KindI16, Gain: 10, Unit: "C"},
	"insulation_resistance":    {Key: "insulation_resistance", Address: 32088, Quantity: 1, Kind: KindU16, Gain: 1000, Unit: "MOhm"},
	"device_status":            {Key: "device_status", Address: 32089, Quantity: 1, Kind: KindStatus, Gain: 1, Unit: ""},
	"fault_code":               {Key: "fault_code", Address: 32090, Quantity: 1, Kind: KindU16, Gain: 1, Unit: ""},
	"accumulated_yield_energy": {Key: "accumulated_yield_energy", Address: 32106, Quantity: 2, Kind: KindU32, Gain: 100, Unit: "kWh"},
	"daily_yield_energy":       {Key: "daily_yield_energy", Address: 32114, Quantity: 2, Kind: KindU32, Gain: 100, Unit: "kWh"},
	"power_meter_active_power": {Key: "power_meter_active_power", Address: 37113, Quantity: 2, Kind: KindI32, Gain: 1, Unit: "W"},
}

// deviceStatusText maps device_status register values to readable states.
var deviceStatusText = map[uint16]string{
	0x0000: "Standby: initializing",
	0x0001: "Standby: detecting insulation resistance",
	0x0002: "Standby: detecting irradiation",
	0x0003: "Standby: grid detecting",
	0x0100: "Starting",
	0x0200: "On-grid",
	0x0201: "Grid connection: power limited",
	0x0202: "Grid connection: self-derating",
	0x0300: "Shutdown: fault",
	0x0301: "Shutdown: command",
	0x0302: "Shutdown: OVGR",
	0x0303: "Shutdown: communication disconnected",
	0x0304: "Shutdown: power limited",
	0x0305: "Shutdown: manual startup required",
	0x0306: "Shutdown: DC switches disconnected",
	0x0401: "Grid scheduling: cosphi-P curve",
	0x0402: "Grid scheduling: Q-U curve",
	0x0500: "Spot-check ready",
	0x0501: "Spot-checking",
	0x0600: "Inspecting",
	0x0700: "AFCI self check",
	0x0800: "I-V scanning",
	0x0900: "DC input detection",
	0xA000: "Standby: no irradiation",
}

// DefaultFrequentKeys lists the registers read every cycle when the
// configuration does not name its own set.
func DefaultFrequentKeys() []string {
	return []string{
		"input_power",
		"active_power",
		"power_factor",
		"grid_voltage",
		"grid_current",
		"grid_frequency",
	}
}

// DefaultPeriodicKeys lists the slower-moving registers read on the
// periodic tick.
func DefaultPeriodicKeys() []string {
	return []string{
		"device_status",
		"internal_temperature",
		"daily_yield_energy",
		"accumulated_yield_energy",
		"efficiency",
	}
}

// Lookup resolves a register key to its table entry.
func Lookup(key string) (Register, error) {
	reg, ok := registerTable[key]
	if !ok {
		return Register{}, fmt.Errorf("%w: %q", ErrUnknownRegister, key)
	}
	return reg, nil
}

// Keys returns all known register keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(registerTable))
	for k := range registerTable {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ValidateKeys checks that every key in the slice has a table entry.
func ValidateKeys(keys []string) error {
	for _, k := range keys {
		if _, err := Lookup(k); err != nil {
			return err
		}
	}
	return nil
}

// StatusText resolves a device_status register value to its state string.
// Unknown codes render as the raw code so nothing is silently dropped.
func StatusText(code uint16) string {
	if text, ok := deviceStatusText[code]; ok {
		return text
	}
	return fmt.Sprintf("Unknown status (0x%04X)", code)
}
