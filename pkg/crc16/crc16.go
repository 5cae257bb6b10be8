// Package crc16 implements the 16-bit CRC used to protect wear-levelled
// records (CRC-16/ARC: reflected polynomial 0xA001, initial value 0).
//
// The byte step matches avr-libc's _crc16_update, so images written by the
// AVR utility validate here and the other way around.
package crc16

// Size of a CRC16 checksum in bytes.
const Size = 2

// Polynomial is the reflected form of x^16 + x^15 + x^2 + 1.
const Polynomial uint16 = 0xA001

// Update folds a single byte into the running checksum.
func Update(crc uint16, b byte) uint16 {
	crc ^= uint16(b)
	for i := 0; i < 8; i++ {
		if crc&1 != 0 {
			crc = (crc >> 1) ^ Polynomial
		} else {
			crc >>= 1
		}
	}
	return crc
}

// Checksum computes the CRC16 of data, seeded at 0.
func Checksum(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc = Update(crc, b)
	}
	return crc
}

// Hash accumulates a checksum incrementally, for callers that read payload
// bytes one at a time from a device.
type Hash struct {
	crc uint16
}

// New returns a Hash seeded at 0.
func New() *Hash {
	return &Hash{}
}

// Write folds p into the checksum. It never returns an error.
func (h *Hash) Write(p []byte) (int, error) {
	for _, b := range p {
		h.crc = Update(h.crc, b)
	}
	return len(p), nil
}

// WriteByte folds a single byte into the checksum.
func (h *Hash) WriteByte(b byte) error {
	h.crc = Update(h.crc, b)
	return nil
}

// Sum16 returns the current checksum.
func (h *Hash) Sum16() uint16 {
	return h.crc
}

// Reset restores the seed value.
func (h *Hash) Reset() {
	h.crc = 0
}
