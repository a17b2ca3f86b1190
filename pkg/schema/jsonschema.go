package schema

import (
	"encoding/json"
	"math"
	"slices"
	"sort"
)

type JSONType string

const (
	JSONTypeObject  JSONType = "object"
	JSONTypeString  JSONType = "string"
	JSONTypeNumber  JSONType = "number"
	JSONTypeInteger JSONType = "integer"
	JSONTypeBoolean JSONType = "boolean"
	JSONTypeArray   JSONType = "array"
	JSONTypeNull    JSONType = "null"
)

// TypeSet encodes as a single type name, or as a list once null is allowed.
type TypeSet []JSONType

func (t TypeSet) MarshalJSON() ([]byte, error) {
	if len(t) == 1 {
		return json.Marshal(t[0])
	}
	return json.Marshal([]JSONType(t))
}

// Definition is a JSON Schema node. The same definitions are compiled for
// local validation and sent to structured-output endpoints.
type Definition struct {
	Type                 TypeSet               `json:"type,omitempty"`
	Description          string                `json:"description,omitempty"`
	Properties           map[string]Definition `json:"properties,omitempty"`
	Required             []string              `json:"required,omitempty"`
	AdditionalProperties *bool                 `json:"additionalProperties,omitempty"`
	Enum                 []any                 `json:"enum,omitempty"`
	Format               string                `json:"format,omitempty"`
	MinLength            *int                  `json:"minLength,omitempty"`
	Items                *Definition           `json:"items,omitempty"`
	MinItems             *int                  `json:"minItems,omitempty"`
	MaxItems             *int                  `json:"maxItems,omitempty"`
	Minimum              *float64              `json:"minimum,omitempty"`
	Maximum              *float64              `json:"maximum,omitempty"`
}

func ptr[T any](v T) *T {
	return &v
}

func of(t JSONType) TypeSet {
	return TypeSet{t}
}

func nullable(d Definition) Definition {
	d.Type = append(slices.Clone(d.Type), JSONTypeNull)
	if d.Enum != nil {
		d.Enum = append(slices.Clone(d.Enum), nil)
	}
	return d
}

func text() Definition {
	return Definition{Type: of(JSONTypeString)}
}

func nonEmptyText() Definition {
	return Definition{Type: of(JSONTypeString), MinLength: ptr(1)}
}

func number(desc string, lo, hi float64) Definition {
	return Definition{Type: of(JSONTypeNumber), Description: desc, Minimum: ptr(lo), Maximum: ptr(hi)}
}

func integer(lo float64) Definition {
	return Definition{Type: of(JSONTypeInteger), Minimum: ptr(lo), Maximum: ptr(float64(math.MaxInt32))}
}

func enum(values ...string) Definition {
	d := Definition{Type: of(JSONTypeString)}
	for _, v := range values {
		d.Enum = append(d.Enum, v)
	}
	return d
}

func array(items Definition, minItems, maxItems int) Definition {
	d := Definition{Type: of(JSONTypeArray), Items: &items}
	if minItems > 0 {
		d.MinItems = ptr(minItems)
	}
	if maxItems >= 0 {
		d.MaxItems = ptr(maxItems)
	}
	return d
}

func object(props map[string]Definition, required ...string) Definition {
	return Definition{Type: of(JSONTypeObject), Properties: props, Required: required}
}

// closed requires every property and forbids unknown keys, recursively.
func closed(d Definition) Definition {
	if d.Items != nil {
		d.Items = ptr(closed(*d.Items))
	}
	if d.Properties == nil {
		return d
	}
	props := make(map[string]Definition, len(d.Properties))
	keys := make([]string, 0, len(d.Properties))
	for k, p := range d.Properties {
		props[k] = closed(p)
		keys = append(keys, k)
	}
	sort.Strings(keys)
	d.Properties = props
	d.Required = keys
	d.AdditionalProperties = ptr(false)
	return d
}

func errorEntryContract() Definition {
	return object(map[string]Definition{
		"code":    nonEmptyText(),
		"message": text(),
	}, "code", "message")
}

// detectionContract is what a detection response must satisfy. brand, model,
// notes and errors may be omitted. Box ranges are not checked here because
// geometry.Normalize repairs them.
func detectionContract(maxCandidates int) Definition {
	coord := func(desc string) Definition {
		return Definition{Type: of(JSONTypeNumber), Description: desc}
	}
	bbox := object(map[string]Definition{
		"x": coord("left edge"),
		"y": coord("top edge"),
		"w": coord("width"),
		"h": coord("height"),
	}, "x", "y", "w", "h")
	bbox.Description = "Bounding box normalized to image width and height, origin top-left"

	raw := nonEmptyText()
	raw.Description = "Text read from or inferred for the shoe"

	candidate := object(map[string]Definition{
		"raw_label":  raw,
		"brand":      nullable(text()),
		"model":      nullable(text()),
		"confidence": number("Confidence that brand and model are correct", 0, 1),
		"bbox":       nullable(bbox),
		"notes":      nullable(text()),
	}, "raw_label", "confidence", "bbox")

	quality := object(map[string]Definition{
		"lighting":  enum(lightingValues...),
		"blur":      enum(blurValues...),
		"occlusion": enum(occlusionValues...),
	}, "lighting", "blur", "occlusion")

	return object(map[string]Definition{
		"candidates":    array(candidate, 0, ClampMaxCandidates(maxCandidates)),
		"image_quality": quality,
		"errors":        nullable(array(errorEntryContract(), 0, -1)),
	}, "candidates", "image_quality")
}

// detectionResponse adds the optional request_id a model may echo back.
func detectionResponse(maxCandidates int) Definition {
	d := detectionContract(maxCandidates)
	id := nullable(Definition{Type: of(JSONTypeString), Format: "uuid"})
	d.Properties["request_id"] = id
	return d
}

// DetectionJSONSchema renders the detection contract for a response_format
// request. Every object is closed because structured-output endpoints need
// every key listed as required.
func DetectionJSONSchema(maxCandidates int) Definition {
	return closed(detectionContract(maxCandidates))
}

func profileContract() Definition {
	return object(map[string]Definition{
		"arch_type":      enum(archValues...),
		"usage":          enum(usageValues...),
		"weekly_mileage": integer(0),
	}, "arch_type", "usage", "weekly_mileage")
}

func rankingContract() Definition {
	specs := object(map[string]Definition{
		"terrain":   nullable(text()),
		"stability": nullable(enum(stabilityValues...)),
		"cushion":   nullable(enum(cushionValues...)),
		"drop_mm":   nullable(integer(math.MinInt32)),
		"weight_g":  nullable(integer(math.MinInt32)),
	})

	recommendation := object(map[string]Definition{
		"model":       nonEmptyText(),
		"match_score": number("", 0, 100),
		"why":         array(nonEmptyText(), MinWhy, MaxWhy),
		"specs":       specs,
		"tradeoffs":   array(nonEmptyText(), 0, MaxTradeoffs),
		"confidence":  number("", 0, 1),
	}, "model", "match_score", "why", "specs", "tradeoffs", "confidence")

	avoid := object(map[string]Definition{
		"model":  nonEmptyText(),
		"reason": nonEmptyText(),
	}, "model", "reason")

	return object(map[string]Definition{
		"request_id":      {Type: of(JSONTypeString), Format: "uuid"},
		"profile_used":    profileContract(),
		"ranked":          array(recommendation, 0, MaxRanked),
		"avoid":           array(avoid, 0, MaxAvoid),
		"fallback_needed": {Type: of(JSONTypeBoolean)},
		"errors":          array(errorEntryContract(), 0, -1),
	}, "request_id", "profile_used", "ranked", "avoid", "fallback_needed", "errors")
}
