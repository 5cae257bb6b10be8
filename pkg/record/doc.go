// Package record describes the on-device layout of a wear-levelled record.
//
// # Record Format
//
// A record starts at the store's base address:
//
//	[Marker(4)][CRC16(2)][Payload(N)]
//
// Fields:
//   - Marker: the constant 0xA5AFFA5A (little-endian), found by scanning
//     the device on power-up
//   - CRC16: CRC-16/ARC of the payload, seeded at 0 (little-endian)
//   - Payload: N caller bytes; N is not stored and must be known to both
//     writer and reader
//
// The layout is a compatibility contract with the AVR EEPROM utility that
// produced it: images written by either side can be read by the other.
package record
