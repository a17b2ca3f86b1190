package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

var (
	rankingSchema = mustCompile("ranking", rankingContract())
	profileSchema = mustCompile("profile", profileContract())

	detectionMu      sync.Mutex
	detectionSchemas = map[int]*jsonschema.Schema{}
)

func compile(name string, def Definition) (*jsonschema.Schema, error) {
	data, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("encoding %s schema: %w", name, err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s schema: %w", name, err)
	}

	c := jsonschema.NewCompiler()
	c.AssertFormat()
	url := "https://shoewall.local/schemas/" + name + ".json"
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("adding %s schema: %w", name, err)
	}
	return c.Compile(url)
}

// mustCompile is for the package's own static contracts.
func mustCompile(name string, def Definition) *jsonschema.Schema {
	sch, err := compile(name, def)
	if err != nil {
		panic(fmt.Sprintf("schema: compiling %s: %v", name, err))
	}
	return sch
}

func detectionSchema(maxCandidates int) *jsonschema.Schema {
	n := ClampMaxCandidates(maxCandidates)

	detectionMu.Lock()
	defer detectionMu.Unlock()
	if sch, ok := detectionSchemas[n]; ok {
		return sch
	}
	sch := mustCompile("detection-"+strconv.Itoa(n), detectionResponse(n))
	detectionSchemas[n] = sch
	return sch
}

// check validates v and returns a *ValidationError listing every violation.
func check(name string, sch *jsonschema.Schema, v any) error {
	var out []Violation
	nonFinite(v, "", &out)
	if len(out) > 0 {
		return &ValidationError{Schema: name, Violations: out}
	}

	err := sch.Validate(v)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return &ValidationError{Schema: name, Violations: []Violation{{Message: err.Error()}}}
	}
	collect(v, verr, &out)
	return &ValidationError{Schema: name, Violations: out}
}

// decode converts an already validated value into its typed form.
func decodeTyped(name string, v any, dst any) error {
	data, err := json.Marshal(v)
	if err == nil {
		err = json.Unmarshal(data, dst)
	}
	if err != nil {
		return &ValidationError{Schema: name, Violations: []Violation{{Message: err.Error()}}}
	}
	return nil
}

// nonFinite reports NaN and infinities, which have no JSON form.
func nonFinite(v any, path string, out *[]Violation) {
	switch n := v.(type) {
	case map[string]any:
		for k, item := range n {
			nonFinite(item, join(path, k), out)
		}
	case []any:
		for i, item := range n {
			nonFinite(item, index(path, i), out)
		}
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			*out = append(*out, Violation{Path: path, Message: "must be a finite number"})
		}
	case float32:
		if math.IsNaN(float64(n)) || math.IsInf(float64(n), 0) {
			*out = append(*out, Violation{Path: path, Message: "must be a finite number"})
		}
	}
}

func collect(root any, e *jsonschema.ValidationError, out *[]Violation) {
	if len(e.Causes) > 0 {
		for _, cause := range e.Causes {
			collect(root, cause, out)
		}
		return
	}

	path := pathOf(root, e.InstanceLocation)
	if req, ok := e.ErrorKind.(*kind.Required); ok {
		for _, key := range req.Missing {
			*out = append(*out, Violation{Path: join(path, key), Message: "is required"})
		}
		return
	}
	*out = append(*out, Violation{Path: path, Message: describe(e.ErrorKind)})
}

// pathOf renders an instance location as "a.b[2].c".
func pathOf(root any, tokens []string) string {
	path := ""
	node := root
	for _, tok := range tokens {
		switch n := node.(type) {
		case []any:
			i, _ := strconv.Atoi(tok)
			path = index(path, i)
			node = nil
			if i >= 0 && i < len(n) {
				node = n[i]
			}
		case map[string]any:
			path = join(path, tok)
			node = n[tok]
		default:
			path = join(path, tok)
			node = nil
		}
	}
	return path
}

func describe(k jsonschema.ErrorKind) string {
	switch k := k.(type) {
	case *kind.Type:
		return fmt.Sprintf("must be %s, got %s", strings.Join(k.Want, " or "), k.Got)
	case *kind.Minimum:
		return fmt.Sprintf("must be >= %s, got %s", rat(k.Want), rat(k.Got))
	case *kind.Maximum:
		return fmt.Sprintf("must be <= %s, got %s", rat(k.Want), rat(k.Got))
	case *kind.MinItems:
		return fmt.Sprintf("must have at least %d items, got %d", k.Want, k.Got)
	case *kind.MaxItems:
		return fmt.Sprintf("must have at most %d items, got %d", k.Want, k.Got)
	case *kind.MinLength:
		if k.Want == 1 {
			return "must not be empty"
		}
		return fmt.Sprintf("must have at least %d characters, got %d", k.Want, k.Got)
	case *kind.Enum:
		allowed := make([]string, 0, len(k.Want))
		for _, w := range k.Want {
			if w != nil {
				allowed = append(allowed, fmt.Sprint(w))
			}
		}
		return fmt.Sprintf("must be one of %v, got %v", allowed, k.Got)
	case *kind.Format:
		return fmt.Sprintf("must be a %s, got %v", strings.ToUpper(k.Want), k.Got)
	}
	return k.LocalizedString(printer)
}

func rat(r *big.Rat) string {
	if r == nil {
		return "?"
	}
	f, _ := r.Float64()
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func index(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}
