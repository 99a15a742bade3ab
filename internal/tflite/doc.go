// Package tflite reads the parts of a TensorFlow Lite model that the
// converter needs: the file identifier, the schema version and the
// operator-code table.
//
// The accessors in schema.go follow the layout flatc generates for the
// TensorFlow Lite schema (schema.fbs) and only cover the Model and
// OperatorCode tables. Subgraphs, tensors and buffers are never decoded.
//
// Operator resolution rules:
//   - A custom operator is identified by its custom_code string.
//   - A builtin operator id is max(builtin_code, deprecated_builtin_code),
//     since ids above 127 moved from the int8 field to the int32 field.
//   - When a model declares any custom operator, the generic CUSTOM builtin
//     is dropped from the set; the named custom entries already cover it.
package tflite
