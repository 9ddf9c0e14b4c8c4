package runtime

import (
	"encoding/binary"
	"math"
)

// accountStorageOverhead is the per-account metadata the cluster charges rent for.
const accountStorageOverhead = 128

// Rent holds the rent parameters of the cluster.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  float64
	BurnPercent         uint8
}

// DefaultRent returns mainnet rent parameters.
func DefaultRent() Rent {
	return Rent{
		LamportsPerByteYear: 3480,
		ExemptionThreshold:  2.0,
		BurnPercent:         50,
	}
}

// MinimumBalance returns the lamports an account of size bytes needs to be rent exempt.
func (r Rent) MinimumBalance(size int) uint64 {
	bytes := uint64(accountStorageOverhead + size)
	return uint64(float64(bytes*r.LamportsPerByteYear) * r.ExemptionThreshold)
}

// IsExempt reports whether lamports cover the exemption threshold for size bytes.
func (r Rent) IsExempt(lamports uint64, size int) bool {
	return lamports >= r.MinimumBalance(size)
}

// encode packs the sysvar: lamports_per_byte_year(8) | exemption_threshold f64(8) | burn_percent(1)
func (r Rent) encode() []byte {
	buf := make([]byte, 17)
	binary.LittleEndian.PutUint64(buf[0:8], r.LamportsPerByteYear)
	binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(r.ExemptionThreshold))
	buf[16] = r.BurnPercent
	return buf
}
