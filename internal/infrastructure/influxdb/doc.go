// Package influxdb mirrors published inverter samples into InfluxDB.
//
// The MQTT broker is the system of record; the InfluxDB mirror is an
// optional convenience for sites that want Grafana dashboards without an
// MQTT-to-TSDB shovel in between. Writes are non-blocking and batched, and
// a write failure never touches the poll scheduler; the mirror silently
// misses points the same way it would if it were disabled.
package influxdb
