// Package capability reads the operator registrations a TFLM build offers
// and checks a model's operators against them.
//
// The reference is TFLM's micro_mutable_op_resolver.h. Every line containing
// "TfLiteStatus Add" declares one registration method, e.g.
//
//	TfLiteStatus AddConv2D(const TFLMRegistration& registration = Register_CONV_2D()) {
//
// Verification is all-or-nothing: a header that registers an operator the
// resolver does not declare would not compile.
package capability
