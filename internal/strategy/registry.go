package strategy

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
)

// factory 从已校验的参数构造策略实例。
type factory struct {
	schema string
	build  func(name string, params map[string]any) (Strategy, error)
}

var factories = map[string]factory{
	KindRSIBand: {
		schema: rsiBandSchema,
		build: func(name string, params map[string]any) (Strategy, error) {
			cfg := DefaultRSIBandConfig()
			if err := decodeParams(params, &cfg); err != nil {
				return nil, err
			}
			if cfg.Upper <= cfg.Lower {
				return nil, fmt.Errorf("upper_band %.2f must exceed lower_band %.2f", cfg.Upper, cfg.Lower)
			}
			return NewRSIBand(name, cfg), nil
		},
	},
	KindADXRSI: {
		schema: adxRSISchema,
		build: func(name string, params map[string]any) (Strategy, error) {
			cfg := DefaultADXRSIConfig()
			if err := decodeParams(params, &cfg); err != nil {
				return nil, err
			}
			if cfg.Upper <= cfg.Lower {
				return nil, fmt.Errorf("upper_band %.2f must exceed lower_band %.2f", cfg.Upper, cfg.Lower)
			}
			return NewADXRSI(name, cfg)
		},
	},
	KindSMATrend: {
		schema: smaTrendSchema,
		build: func(name string, params map[string]any) (Strategy, error) {
			cfg := DefaultSMATrendConfig()
			if err := decodeParams(params, &cfg); err != nil {
				return nil, err
			}
			if !(cfg.Fast < cfg.Mid && cfg.Mid < cfg.Slow) {
				return nil, fmt.Errorf("sma periods must satisfy fast < mid < slow, got %d/%d/%d", cfg.Fast, cfg.Mid, cfg.Slow)
			}
			return NewSMATrend(name, cfg)
		},
	},
	KindTrendEMA: {
		schema: trendEMASchema,
		build: func(name string, params map[string]any) (Strategy, error) {
			cfg := DefaultTrendEMAConfig()
			if err := decodeParams(params, &cfg); err != nil {
				return nil, err
			}
			return NewTrendEMA(name, cfg)
		},
	},
	KindPinbar: {
		schema: pinbarSchema,
		build: func(name string, params map[string]any) (Strategy, error) {
			cfg := DefaultPinbarConfig()
			if err := decodeParams(params, &cfg); err != nil {
				return nil, err
			}
			if !cfg.Coef.IsPositive() {
				return nil, fmt.Errorf("pinbar_size must be positive")
			}
			return NewPinbar(name, cfg), nil
		},
	},
}

// Kinds 返回已注册的策略类型。
func Kinds() []string {
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Build 按类型校验参数并构造策略。
func Build(kind, name string, params map[string]any) (Strategy, error) {
	f, ok := factories[strings.ToLower(strings.TrimSpace(kind))]
	if !ok {
		return nil, fmt.Errorf("unknown strategy kind %q (known: %s)", kind, strings.Join(Kinds(), ", "))
	}
	if err := validateParams(f.schema, params); err != nil {
		return nil, fmt.Errorf("strategy %s params: %w", kind, err)
	}
	s, err := f.build(name, params)
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", kind, err)
	}
	return s, nil
}

func validateParams(schema string, params map[string]any) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("params.json", strings.NewReader(schema)); err != nil {
		return err
	}
	compiled, err := compiler.Compile("params.json")
	if err != nil {
		return err
	}
	if params == nil {
		params = map[string]any{}
	}
	// 统一为 json 数值类型后再校验
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return compiled.Validate(doc)
}

func decodeParams(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       decimalHook,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(params)
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

func decimalHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != decimalType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return decimal.NewFromString(strings.TrimSpace(v))
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	default:
		return data, nil
	}
}
