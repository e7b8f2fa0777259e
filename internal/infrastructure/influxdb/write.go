package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteSample writes a single numeric inverter sample to InfluxDB.
//
// The write is non-blocking; points are batched and sent asynchronously.
// Non-numeric registers (device status strings) are not mirrored; string
// state belongs on MQTT, numeric series belong in the TSDB.
//
// Parameters:
//   - device: Topic prefix identifying the inverter (e.g., "inverter/Huawei")
//   - register: The register name (e.g., "active_power")
//   - value: The scaled numeric value
//   - at: Sample timestamp
//
// Example:
//
//	client.WriteSample("inverter/Huawei", "active_power", 3250.0, time.Now())
func (c *Client) WriteSample(device string, register string, value float64, at time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"inverter",
		map[string]string{
			"device":   device,
			"register": register,
		},
		map[string]interface{}{
			"value": value,
		},
		at,
	)

	c.writeAPI.WritePoint(point)
}
