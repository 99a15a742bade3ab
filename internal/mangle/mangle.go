// Package mangle converts TFLite operator names into the registration
// methods of tflite::MicroMutableOpResolver.
//
//	CONV_2D                       -> AddConv2D
//	UNIDIRECTIONAL_SEQUENCE_LSTM  -> AddUnidirectionalSequenceLSTM
//	TFLite_Detection_PostProcess  -> AddDetectionPostprocess
package mangle

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// RegistrationPrefix prefixes every resolver registration method.
const RegistrationPrefix = "Add"

// DefaultVendorPrefixes are removed from operator names before splitting.
// TFLite_Detection_PostProcess is registered as AddDetectionPostprocess.
var DefaultVendorPrefixes = []string{"TFLite"}

var partSeparator = regexp.MustCompile(`[_-]`)

// Mangler turns canonical operator names into registration identifiers.
// A Mangler is immutable after construction and safe for concurrent use.
type Mangler struct {
	vendorPrefixes []string
	corrections    Corrections
}

// Option configures a Mangler.
type Option func(*Mangler)

// WithVendorPrefixes replaces the vendor prefixes stripped from names.
func WithVendorPrefixes(prefixes ...string) Option {
	return func(m *Mangler) {
		m.vendorPrefixes = append([]string(nil), prefixes...)
	}
}

// WithCorrections appends casing corrections after the defaults.
func WithCorrections(extra Corrections) Option {
	return func(m *Mangler) {
		m.corrections = append(m.corrections, extra...)
	}
}

// New returns a Mangler using DefaultVendorPrefixes and DefaultCorrections
// as modified by opts.
func New(opts ...Option) *Mangler {
	m := &Mangler{
		vendorPrefixes: append([]string(nil), DefaultVendorPrefixes...),
		corrections:    append(Corrections(nil), DefaultCorrections...),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var defaultMangler = New()

// Mangle converts name using the default Mangler.
func Mangle(name string) string {
	return defaultMangler.Mangle(name)
}

// Mangle converts one canonical operator name into a registration identifier.
func (m *Mangler) Mangle(name string) string {
	for _, prefix := range m.vendorPrefixes {
		if prefix != "" {
			name = strings.ReplaceAll(name, prefix, "")
		}
	}

	var b strings.Builder
	for _, part := range partSeparator.Split(name, -1) {
		b.WriteString(formatPart(part))
	}

	return RegistrationPrefix + m.corrections.Apply(b.String())
}

// MangleAll converts names in order.
func (m *Mangler) MangleAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = m.Mangle(n)
	}
	return out
}

// formatPart title-cases parts starting with a letter and upper-cases
// everything else.
func formatPart(part string) string {
	if utf8.RuneCountInString(part) <= 1 {
		return strings.ToUpper(part)
	}
	first, size := utf8.DecodeRuneInString(part)
	if !unicode.IsLetter(first) {
		return strings.ToUpper(part)
	}
	return string(unicode.ToUpper(first)) + strings.ToLower(part[size:])
}
