package hclfunc

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/hashicorp/hcl/v2/ext/tryfunc"
	ctyyaml "github.com/zclconf/go-cty-yaml"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Stdlib returns the deterministic function set available in every
// expression: definitions, hook actions and generation functions.
func Stdlib() map[string]function.Function {
	return map[string]function.Function{
		"abs":        stdlib.AbsoluteFunc,
		"can":        tryfunc.CanFunc,
		"ceil":       stdlib.CeilFunc,
		"chunklist":  stdlib.ChunklistFunc,
		"coalesce":   stdlib.CoalesceFunc,
		"compact":    stdlib.CompactFunc,
		"concat":     stdlib.ConcatFunc,
		"contains":   stdlib.ContainsFunc,
		"distinct":   stdlib.DistinctFunc,
		"element":    stdlib.ElementFunc,
		"flatten":    stdlib.FlattenFunc,
		"floor":      stdlib.FloorFunc,
		"format":     stdlib.FormatFunc,
		"formatdate": stdlib.FormatDateFunc,
		"formatlist": stdlib.FormatListFunc,
		"int":        stdlib.IntFunc,
		"join":       stdlib.JoinFunc,
		"jsondecode": stdlib.JSONDecodeFunc,
		"jsonencode": stdlib.JSONEncodeFunc,
		"keys":       stdlib.KeysFunc,
		"length":     stdlib.LengthFunc,
		"lookup":     stdlib.LookupFunc,
		"lower":      stdlib.LowerFunc,
		"max":        stdlib.MaxFunc,
		"merge":      stdlib.MergeFunc,
		"min":        stdlib.MinFunc,
		"pow":        stdlib.PowFunc,
		"range":      stdlib.RangeFunc,
		"replace":    stdlib.ReplaceFunc,
		"reverse":    stdlib.ReverseListFunc,
		"slice":      stdlib.SliceFunc,
		"split":      stdlib.SplitFunc,
		"strlen":     stdlib.StrlenFunc,
		"substr":     stdlib.SubstrFunc,
		"title":      titleFunc,
		"trimspace":  stdlib.TrimSpaceFunc,
		"try":        tryfunc.TryFunc,
		"upper":      stdlib.UpperFunc,
		"values":     stdlib.ValuesFunc,
		"yamldecode": ctyyaml.YAMLDecodeFunc,
		"yamlencode": ctyyaml.YAMLEncodeFunc,
		"zipmap":     stdlib.ZipmapFunc,
	}
}

// titleFunc upper-cases the first letter of every word and lower-cases the
// rest, so "mARY ann" becomes "Mary Ann".
var titleFunc = function.New(&function.Spec{
	Params: []function.Parameter{{Name: "str", Type: cty.String}},
	Type:   function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		return cty.StringVal(cases.Title(language.English).String(args[0].AsString())), nil
	},
})

// Generators returns Stdlib plus the random value generators, all drawing
// from one ChaCha8 stream seeded with seed. The returned set is not safe for
// concurrent use.
func Generators(seed uint64) map[string]function.Function {
	src := rand.NewChaCha8(expandSeed(seed))
	rng := rand.New(src)

	fns := Stdlib()
	fns["uuid"] = function.New(&function.Spec{
		Type: function.StaticReturnType(cty.String),
		Impl: func(_ []cty.Value, _ cty.Type) (cty.Value, error) {
			id, err := uuid.NewRandomFromReader(src)
			if err != nil {
				return cty.NilVal, err
			}
			return cty.StringVal(id.String()), nil
		},
	})
	fns["random_int"] = function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "min", Type: cty.Number},
			{Name: "max", Type: cty.Number},
		},
		Type: function.StaticReturnType(cty.Number),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			lo, _ := args[0].AsBigFloat().Int64()
			hi, _ := args[1].AsBigFloat().Int64()
			if hi < lo {
				return cty.NilVal, function.NewArgErrorf(1, "max (%d) must not be less than min (%d)", hi, lo)
			}
			return cty.NumberIntVal(lo + rng.Int64N(hi-lo+1)), nil
		},
	})
	fns["random_float"] = function.New(&function.Spec{
		Type: function.StaticReturnType(cty.Number),
		Impl: func(_ []cty.Value, _ cty.Type) (cty.Value, error) {
			return cty.NumberFloatVal(rng.Float64()), nil
		},
	})
	fns["random_bool"] = function.New(&function.Spec{
		Type: function.StaticReturnType(cty.Bool),
		Impl: func(_ []cty.Value, _ cty.Type) (cty.Value, error) {
			return cty.BoolVal(rng.IntN(2) == 1), nil
		},
	})
	fns["random_choice"] = function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "list", Type: cty.DynamicPseudoType},
		},
		Type: func(args []cty.Value) (cty.Type, error) {
			ty := args[0].Type()
			switch {
			case ty.IsListType() || ty.IsSetType():
				return ty.ElementType(), nil
			case ty.IsTupleType(), ty == cty.DynamicPseudoType:
				return cty.DynamicPseudoType, nil
			}
			return cty.NilType, function.NewArgErrorf(0, "argument must be a list or tuple")
		},
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			n := args[0].LengthInt()
			if n == 0 {
				return cty.NilVal, function.NewArgErrorf(0, "cannot choose from an empty list")
			}
			pick := rng.IntN(n)
			i := 0
			for it := args[0].ElementIterator(); it.Next(); i++ {
				if i == pick {
					_, v := it.Element()
					return v, nil
				}
			}
			return cty.NilVal, fmt.Errorf("random_choice: index %d out of range", pick)
		},
	})
	fns["random_string"] = function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "length", Type: cty.Number},
		},
		Type: function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			n, _ := args[0].AsBigFloat().Int64()
			if n < 0 {
				return cty.NilVal, function.NewArgErrorf(0, "length must not be negative")
			}
			b := make([]byte, n)
			for i := range b {
				b[i] = alphanumeric[rng.IntN(len(alphanumeric))]
			}
			return cty.StringVal(string(b)), nil
		},
	})
	return fns
}

func expandSeed(seed uint64) [32]byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], seed)
	return blake2b.Sum256(b[:])
}

// DeriveSeed mixes a base seed with a run key and a chunk position, so every
// chunk of every run draws from its own reproducible stream.
func DeriveSeed(base uint64, runKey string, start int) uint64 {
	buf := make([]byte, 0, 16+len(runKey))
	buf = binary.LittleEndian.AppendUint64(buf, base)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(start))
	buf = append(buf, runKey...)
	sum := blake2b.Sum256(buf)
	return binary.LittleEndian.Uint64(sum[:8])
}
