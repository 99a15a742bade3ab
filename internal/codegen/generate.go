package codegen

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/flosch/pongo2/v6"
)

//go:embed templates/model_header.h.tpl
var headerTemplateSource string

var headerTemplate = pongo2.Must(pongo2.FromString(headerTemplateSource))

// Arena sizing. The arena is the estimate rounded up to the next multiple
// of ArenaStep, always leaving at least one byte of headroom.
const (
	DefaultArenaEstimate = 41240
	ArenaStep            = 5000
)

// ModelExtension is the file extension of TFLite models.
const ModelExtension = ".tflite"

// Context holds everything the header template renders.
type Context struct {
	// Model is the source file label shown in the header comment.
	Model string
	// Operators are the resolver registration methods, in emission order.
	Operators []string
	// ModelLength is the number of model bytes.
	ModelLength int
	// ArrayName is the C identifier of the model byte array.
	ArrayName string
	// HexArray is the rendered byte literal (see HexArray).
	HexArray string
	// ArenaSize is the tensor arena size cited in the usage comment.
	ArenaSize int
}

// NewContext builds a Context for a model named modelName (no extension).
func NewContext(modelName string, operators []string, data []byte, arenaSize, bytesPerLine int) Context {
	hex, n := HexArray(data, bytesPerLine)
	return Context{
		Model:       modelName + ModelExtension,
		Operators:   operators,
		ModelLength: n,
		ArrayName:   ArrayName(modelName),
		HexArray:    hex,
		ArenaSize:   arenaSize,
	}
}

// Render returns the header text for ctx.
func Render(ctx Context) (string, error) {
	out, err := headerTemplate.Execute(pongo2.Context{
		"model":             ctx.Model,
		"number_of_ops":     len(ctx.Operators),
		"operators":         ctx.Operators,
		"model_length":      ctx.ModelLength,
		"model_name":        ctx.ArrayName,
		"hex_array":         ctx.HexArray,
		"tensor_arena_size": ctx.ArenaSize,
	})
	if err != nil {
		return "", fmt.Errorf("rendering model header: %w", err)
	}
	return out, nil
}

// HeaderFileName returns the generated header file name for a model.
func HeaderFileName(modelName string) string {
	return modelName + "_model.h"
}

// ArrayName returns the C identifier of the model byte array. Characters
// that are not valid in a C identifier are replaced with '_'.
func ArrayName(modelName string) string {
	return "TFLM_" + sanitizeIdentifier(modelName) + "_model"
}

// ArenaSize rounds an arena estimate up past the next multiple of ArenaStep.
func ArenaSize(estimate int) int {
	return (estimate/ArenaStep + 1) * ArenaStep
}

func sanitizeIdentifier(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
