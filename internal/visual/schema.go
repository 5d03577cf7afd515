package visual

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/vinayprograms/loopscope/internal/geom"
)

// MinRadius is the floor applied to loop radii.
const MinRadius = 1e-3

// Issue is one structural problem found in a payload.
type Issue struct {
	Path    string
	Message string
}

// SchemaError reports a payload whose shape cannot be rendered.
// Out-of-range magnitudes never produce a SchemaError; they are clamped.
type SchemaError struct {
	Issues []Issue
}

func (e *SchemaError) Error() string {
	if len(e.Issues) == 0 {
		return "invalid visual state"
	}
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		if is.Path == "" {
			parts = append(parts, is.Message)
			continue
		}
		parts = append(parts, is.Path+": "+is.Message)
	}
	return "invalid visual state: " + strings.Join(parts, "; ")
}

func schemaErr(path, format string, args ...any) *SchemaError {
	return &SchemaError{Issues: []Issue{{Path: path, Message: fmt.Sprintf(format, args...)}}}
}

// Wire shapes. Pointers distinguish "missing" from zero so required keys can
// be enforced; slices keep the raw arity so len=3 can be checked.
type wireState struct {
	T      *float64    `mapstructure:"t"`
	Focus  *string     `mapstructure:"focus"`
	Nodes  []wireNode  `mapstructure:"nodes" validate:"required,dive"`
	Loops  []wireLoop  `mapstructure:"loops" validate:"required,dive"`
	Levers []wireLever `mapstructure:"levers" validate:"required,dive"`
	Flows  []wireFlow  `mapstructure:"flows" validate:"omitempty,dive"`
	Field  *wireField  `mapstructure:"field"`
}

type wireNode struct {
	ID        *string   `mapstructure:"id" validate:"required"`
	Shape     *string   `mapstructure:"shape" validate:"required,oneof=sphere box ico dodeca"`
	Pos       []float64 `mapstructure:"pos" validate:"required,len=3"`
	Color     *string   `mapstructure:"color" validate:"required"`
	Intensity *float64  `mapstructure:"intensity" validate:"required"`
	Opacity   *float64  `mapstructure:"opacity" validate:"required"`
	Scale     *float64  `mapstructure:"scale"`
}

type wireLoop struct {
	ID         *string   `mapstructure:"id" validate:"required"`
	Type       *string   `mapstructure:"type" validate:"required,oneof=R B"`
	Center     []float64 `mapstructure:"center" validate:"required,len=3"`
	Radius     *float64  `mapstructure:"radius" validate:"required"`
	Intensity  *float64  `mapstructure:"intensity" validate:"required"`
	FlowSpeed  *float64  `mapstructure:"flowSpeed" validate:"required"`
	Bottleneck *float64  `mapstructure:"bottleneck"`
	Delay      *float64  `mapstructure:"delay"`
}

type wireLever struct {
	ID       *string   `mapstructure:"id" validate:"required"`
	Target   *string   `mapstructure:"target" validate:"required"`
	Pos      []float64 `mapstructure:"pos" validate:"required,len=3"`
	Strength *float64  `mapstructure:"strength" validate:"required"`
}

type wireFlow struct {
	ID        *string  `mapstructure:"id" validate:"required"`
	From      *string  `mapstructure:"from" validate:"required"`
	To        *string  `mapstructure:"to" validate:"required"`
	Type      *string  `mapstructure:"type" validate:"required,oneof=line tube"`
	Speed     *float64 `mapstructure:"speed" validate:"required"`
	Intensity *float64 `mapstructure:"intensity"`
	Color     *string  `mapstructure:"color"`
}

type wireField struct {
	Chaos    *float64 `mapstructure:"chaos" validate:"required"`
	Density  *float64 `mapstructure:"density" validate:"required"`
	NoiseAmp *float64 `mapstructure:"noiseAmp" validate:"required"`
}

var structValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Parse validates a JSON payload.
func Parse(data []byte) (State, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return State{}, schemaErr("", "payload is empty")
	}
	// Numbers stay as json.Number so magnitudes beyond float64 reach the
	// normalizer instead of failing the decode.
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return State{}, schemaErr("", "malformed JSON: %v", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return State{}, schemaErr("", "malformed JSON: trailing data after the payload")
	}
	return Validate(tree)
}

// ParseYAML validates a YAML payload.
func ParseYAML(data []byte) (State, error) {
	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return State{}, schemaErr("", "malformed YAML: %v", err)
	}
	if tree == nil {
		return State{}, schemaErr("", "payload is empty")
	}
	return Validate(tree)
}

// Validate checks raw for structural validity and returns the normalized
// state. raw may be a decoded JSON/YAML tree, raw JSON bytes, or a State.
func Validate(raw any) (State, error) {
	var w wireState
	switch v := raw.(type) {
	case nil:
		return State{}, schemaErr("", "payload is missing")
	case []byte:
		return Parse(v)
	case json.RawMessage:
		return Parse(v)
	case State:
		w = fromState(v)
	case *State:
		if v == nil {
			return State{}, schemaErr("", "payload is missing")
		}
		w = fromState(*v)
	default:
		if err := decodeTree(raw, &w); err != nil {
			return State{}, err
		}
	}

	if err := structValidator.Struct(&w); err != nil {
		return State{}, toSchemaError(err)
	}
	if err := checkUniqueIDs(&w); err != nil {
		return State{}, err
	}
	return normalize(&w), nil
}

func decodeTree(raw any, out *wireState) error {
	if _, ok := raw.(map[string]any); !ok {
		if reflect.ValueOf(raw).Kind() != reflect.Map {
			return schemaErr("", "expected an object, got %T", raw)
		}
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: false,
		DecodeHook:       numberHook,
	})
	if err != nil {
		return fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		se := &SchemaError{}
		for _, line := range strings.Split(err.Error(), "\n") {
			line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "*"))
			if line == "" || strings.Contains(line, "error(s)") {
				continue
			}
			se.Issues = append(se.Issues, Issue{Message: line})
		}
		if len(se.Issues) == 0 {
			se.Issues = append(se.Issues, Issue{Message: err.Error()})
		}
		return se
	}
	return nil
}

// numberHook turns JSON numbers into float64. Values beyond the float64
// range saturate at ±MaxFloat64 so clamping treats them as very large
// rather than rejecting the payload. YAML leaves such literals as strings;
// those are accepted only when they are numbers that overflow.
func numberHook(from, to reflect.Type, data any) (any, error) {
	var lit string
	switch v := data.(type) {
	case json.Number:
		// Always a float64 afterwards, so a number where a string belongs
		// still fails the decode.
		lit = v.String()
	case string:
		if to.Kind() != reflect.Float64 {
			return data, nil
		}
		if _, err := strconv.ParseFloat(v, 64); !errors.Is(err, strconv.ErrRange) {
			return data, nil
		}
		lit = v
	default:
		return data, nil
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return nil, fmt.Errorf("%q is not a number", lit)
	}
	if math.IsInf(f, 0) {
		f = math.Copysign(math.MaxFloat64, f)
	}
	return f, nil
}

func toSchemaError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return schemaErr("", "%v", err)
	}
	se := &SchemaError{}
	for _, fe := range verrs {
		path := fe.Namespace()
		if i := strings.IndexByte(path, '.'); i >= 0 {
			path = path[i+1:]
		}
		se.Issues = append(se.Issues, Issue{Path: path, Message: describe(fe)})
	}
	return se
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + fe.Param()
	case "len":
		return "must have exactly " + fe.Param() + " elements"
	default:
		return "failed " + fe.Tag() + " check"
	}
}

func checkUniqueIDs(w *wireState) error {
	se := &SchemaError{}
	check := func(kind string, ids []string) {
		seen := make(map[string]bool, len(ids))
		for i, id := range ids {
			if seen[id] {
				se.Issues = append(se.Issues, Issue{
					Path:    fmt.Sprintf("%s[%d].id", kind, i),
					Message: fmt.Sprintf("duplicate id %q", id),
				})
			}
			seen[id] = true
		}
	}

	ids := make([]string, 0, len(w.Nodes))
	for _, n := range w.Nodes {
		ids = append(ids, *n.ID)
	}
	check("nodes", ids)

	ids = ids[:0]
	for _, l := range w.Loops {
		ids = append(ids, *l.ID)
	}
	check("loops", ids)

	ids = ids[:0]
	for _, l := range w.Levers {
		ids = append(ids, *l.ID)
	}
	check("levers", ids)

	ids = ids[:0]
	for _, f := range w.Flows {
		ids = append(ids, *f.ID)
	}
	check("flows", ids)

	if len(se.Issues) > 0 {
		return se
	}
	return nil
}

// Clamp01 clamps v to [0,1]; non-finite values become 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func vec(v []float64) geom.Vec3 {
	var out geom.Vec3
	copy(out[:], v)
	return geom.Finite(out)
}

func optClamp01(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := Clamp01(*p)
	return &v
}

func normalize(w *wireState) State {
	out := Empty()

	if w.T != nil && !math.IsNaN(*w.T) && !math.IsInf(*w.T, 0) {
		t := *w.T
		out.T = &t
	}
	if w.Focus != nil {
		out.Focus = *w.Focus
	}

	for _, n := range w.Nodes {
		node := Node{
			ID:        *n.ID,
			Shape:     Shape(*n.Shape),
			Pos:       vec(n.Pos),
			Color:     *n.Color,
			Intensity: Clamp01(*n.Intensity),
			Opacity:   Clamp01(*n.Opacity),
		}
		if n.Scale != nil {
			s := *n.Scale
			if math.IsNaN(s) || math.IsInf(s, 0) {
				s = 1
			}
			s = math.Max(0, s)
			node.Scale = &s
		}
		out.Nodes = append(out.Nodes, node)
	}

	for _, l := range w.Loops {
		r := *l.Radius
		if math.IsNaN(r) || math.IsInf(r, 0) || r < MinRadius {
			r = MinRadius
		}
		out.Loops = append(out.Loops, Loop{
			ID:         *l.ID,
			Type:       LoopType(*l.Type),
			Center:     vec(l.Center),
			Radius:     r,
			Intensity:  Clamp01(*l.Intensity),
			FlowSpeed:  nonNegative(*l.FlowSpeed),
			Bottleneck: optClamp01(l.Bottleneck),
			Delay:      optClamp01(l.Delay),
		})
	}

	for _, l := range w.Levers {
		out.Levers = append(out.Levers, Lever{
			ID:       *l.ID,
			Target:   *l.Target,
			Pos:      vec(l.Pos),
			Strength: Clamp01(*l.Strength),
		})
	}

	if len(w.Flows) > 0 {
		out.Flows = make([]Flow, 0, len(w.Flows))
		for _, f := range w.Flows {
			flow := Flow{
				ID:        *f.ID,
				From:      *f.From,
				To:        *f.To,
				Type:      FlowStyle(*f.Type),
				Speed:     nonNegative(*f.Speed),
				Intensity: optClamp01(f.Intensity),
			}
			if f.Color != nil {
				c := *f.Color
				flow.Color = &c
			}
			out.Flows = append(out.Flows, flow)
		}
	}

	if w.Field != nil {
		out.Field = &Field{
			Chaos:    Clamp01(*w.Field.Chaos),
			Density:  Clamp01(*w.Field.Density),
			NoiseAmp: Clamp01(*w.Field.NoiseAmp),
		}
	}

	return out
}

// fromState lifts an already typed State into wire form so it goes through
// the same enumeration, uniqueness and magnitude rules as decoded payloads.
func fromState(s State) wireState {
	str := func(v string) *string { return &v }
	num := func(v float64) *float64 { return &v }
	vec3 := func(v geom.Vec3) []float64 { return []float64{v[0], v[1], v[2]} }

	w := wireState{
		T:      s.T,
		Nodes:  make([]wireNode, 0, len(s.Nodes)),
		Loops:  make([]wireLoop, 0, len(s.Loops)),
		Levers: make([]wireLever, 0, len(s.Levers)),
	}
	if s.Focus != "" {
		w.Focus = str(s.Focus)
	}
	for _, n := range s.Nodes {
		w.Nodes = append(w.Nodes, wireNode{
			ID: str(n.ID), Shape: str(string(n.Shape)), Pos: vec3(n.Pos), Color: str(n.Color),
			Intensity: num(n.Intensity), Opacity: num(n.Opacity), Scale: n.Scale,
		})
	}
	for _, l := range s.Loops {
		w.Loops = append(w.Loops, wireLoop{
			ID: str(l.ID), Type: str(string(l.Type)), Center: vec3(l.Center), Radius: num(l.Radius),
			Intensity: num(l.Intensity), FlowSpeed: num(l.FlowSpeed), Bottleneck: l.Bottleneck, Delay: l.Delay,
		})
	}
	for _, l := range s.Levers {
		w.Levers = append(w.Levers, wireLever{
			ID: str(l.ID), Target: str(l.Target), Pos: vec3(l.Pos), Strength: num(l.Strength),
		})
	}
	if s.Flows != nil {
		w.Flows = make([]wireFlow, 0, len(s.Flows))
		for _, f := range s.Flows {
			w.Flows = append(w.Flows, wireFlow{
				ID: str(f.ID), From: str(f.From), To: str(f.To), Type: str(string(f.Type)),
				Speed: num(f.Speed), Intensity: f.Intensity, Color: f.Color,
			})
		}
	}
	if s.Field != nil {
		w.Field = &wireField{
			Chaos: num(s.Field.Chaos), Density: num(s.Field.Density), NoiseAmp: num(s.Field.NoiseAmp),
		}
	}
	return w
}
