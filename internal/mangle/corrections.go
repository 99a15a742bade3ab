package mangle

import "strings"

// Correction rewrites a camel-cased fragment whose conventional casing
// differs from the identifier TFLM actually exposes.
type Correction struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Corrections is an ordered list of casing corrections. Each entry
// replaces every occurrence of From, in order.
type Corrections []Correction

// DefaultCorrections lists the irregular names of the TFLM resolver.
// New exceptions belong here or in the casing_corrections config key.
var DefaultCorrections = Corrections{
	{From: "Lstm", To: "LSTM"},               // AddUnidirectionalSequenceLSTM
	{From: "BatchMatmul", To: "BatchMatMul"}, // AddBatchMatMul
}

// Apply runs every correction over s.
func (c Corrections) Apply(s string) string {
	for _, corr := range c {
		if corr.From == "" {
			continue
		}
		s = strings.ReplaceAll(s, corr.From, corr.To)
	}
	return s
}
