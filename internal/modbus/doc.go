// Package modbus implements the small slice of Modbus TCP that sunbridge
// needs: reading holding registers from a single unit over a single
// connection.
//
// The SUN2000's SDongle accepts exactly one Modbus TCP client and one
// in-flight transaction. The client therefore serializes transactions with
// a mutex and makes no attempt at pipelining; a second uncoordinated
// client on the same dongle is what the bridge's conflict monitor exists
// to detect.
//
// The client does not reconnect itself. A failed transaction leaves the
// connection marked dead; the device supervisor in internal/bridge decides
// when to tear down and dial again.
package modbus
