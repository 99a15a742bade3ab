// Package codegen renders the TFLM model header: the operator resolver
// builder, alignment macros and the model bytes as a C array.
//
// Output is a pure function of Context. The same model bytes, operators and
// arena size always render byte-identical headers.
package codegen
