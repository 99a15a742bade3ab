// Package harness runs conversion scenarios end to end.
//
// A scenario describes a model by its operator-code table, converts it
// against a reference resolver header, and checks the outcome. Scenario
// summaries are compared against golden files.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	model:
//	  name: sine              # file name without .tflite, defaults to name
//	  version: 3
//	  operator_codes:
//	    - builtin: 9          # FULLY_CONNECTED
//	    - builtin: 130
//	      deprecated: 127     # placeholder for ids beyond int8
//	    - custom: TFLite_Detection_PostProcess
//	options:
//	  arena_size: 60000
//	  bytes_per_line: 8
//	expect:
//	  outcome: converted      # or "error"
//	  identifiers: [AddFullyConnected]
//	assertions:
//	  - type: header_contains
//	    text: "micro_op_resolver.AddFullyConnected();"
//	  - type: registration_order
//	    identifiers: [AddConv2D, AddFullyConnected]
//
// A model may instead be given as raw file content with `raw`, which is
// written verbatim.
//
// # Assertion Types
//
//   - header_contains: the generated header contains text
//   - header_omits: the generated header does not contain text
//   - registration_order: identifiers are registered in the given order
//   - no_header: no header was written
//
// # Deterministic Testing
//
// Each run converts into a fresh temporary directory and records into an
// in-memory history database with a fixed run token, so summaries are
// identical across runs.
package harness
