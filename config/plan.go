// Package config loads and validates a repackaging plan.
//
// A plan names the output file, the orbit to subset to and, per instrument,
// the granules to read and the fields to copy out of each. Plans are YAML
// (or anything else viper reads); every key can be overridden from the
// environment as TERRA_<KEY>, with dots replaced by underscores.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/richielo/basicFusion/dataset"
	"github.com/richielo/basicFusion/errkind"
	"github.com/richielo/basicFusion/orbit"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TERRA"

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Plan is one repackaging run.
type Plan struct {
	Output      string       `mapstructure:"output" yaml:"output" validate:"required"`
	Orbit       Orbit        `mapstructure:"orbit" yaml:"orbit"`
	Unpack      bool         `mapstructure:"unpack" yaml:"unpack"`
	FailFast    bool         `mapstructure:"fail_fast" yaml:"fail_fast"`
	Workers     int          `mapstructure:"workers" yaml:"workers,omitempty" validate:"gte=0"`
	MetricsFile string       `mapstructure:"metrics_file" yaml:"metrics_file,omitempty"`
	Instruments []Instrument `mapstructure:"instruments" yaml:"instruments" validate:"required,min=1,dive"`
}

// Orbit selects the orbit window granules are subset to. A plan without a
// table copies whole granules.
type Orbit struct {
	Table  string `mapstructure:"table" yaml:"table,omitempty"`
	Number uint32 `mapstructure:"number" yaml:"number,omitempty" validate:"required_with=Table"`
	Epoch  string `mapstructure:"epoch" yaml:"epoch,omitempty" validate:"omitempty,oneof=julian tai93"`
}

// Instrument lists the granules of one instrument and the fields taken
// from each. An instrument with no granules is recorded as N/A.
type Instrument struct {
	Name      string            `mapstructure:"name" yaml:"name" validate:"required,excludesall=/"`
	Group     string            `mapstructure:"group" yaml:"group,omitempty" validate:"omitempty,excludesall=/"`
	Granules  []string          `mapstructure:"granules" yaml:"granules,omitempty" validate:"dive,required"`
	TimeField string            `mapstructure:"time_field" yaml:"time_field,omitempty"`
	Attrs     map[string]string `mapstructure:"attrs" yaml:"attrs,omitempty"`
	CopyAttrs []string          `mapstructure:"copy_attrs" yaml:"copy_attrs,omitempty" validate:"dive,required"`
	Fields    []Field           `mapstructure:"fields" yaml:"fields,omitempty" validate:"dive"`
}

// Field copies one source array into the granule group. A Whole field
// keeps every record even when the instrument is subset to the orbit
// window, for arrays that are not indexed by time.
type Field struct {
	Src       string            `mapstructure:"src" yaml:"src" validate:"required"`
	Dest      string            `mapstructure:"dest" yaml:"dest" validate:"required"`
	Type      string            `mapstructure:"type" yaml:"type,omitempty" validate:"omitempty,oneof=f32 f64 u16 i64 str"`
	Scale     *float64          `mapstructure:"scale" yaml:"scale,omitempty" validate:"omitempty,gt=0"`
	ScaleAttr string            `mapstructure:"scale_attr" yaml:"scale_attr,omitempty" validate:"excluded_with=Scale"`
	Fill      *float64          `mapstructure:"fill" yaml:"fill,omitempty"`
	Attrs     map[string]string `mapstructure:"attrs" yaml:"attrs,omitempty"`
	CopyAttrs []string          `mapstructure:"copy_attrs" yaml:"copy_attrs,omitempty" validate:"dive,required"`
	Stats     bool              `mapstructure:"stats" yaml:"stats,omitempty"`
	Whole     bool              `mapstructure:"whole" yaml:"whole,omitempty"`
}

// Packed reports whether the field carries a scale factor.
func (f Field) Packed() bool { return f.Scale != nil || f.ScaleAttr != "" }

// ElementType is the requested output type, or dataset.Invalid when the
// field keeps its source type.
func (f Field) ElementType() (dataset.ElementType, error) {
	if f.Type == "" {
		return dataset.Invalid, nil
	}
	return dataset.ParseElementType(f.Type)
}

// GroupName is the name of the group a granule is placed in. Groups
// default to the granule's position, counting from one.
func (in Instrument) GroupName(i int) string {
	if in.Group == "" {
		return fmt.Sprintf("Granule_%d", i+1)
	}
	if len(in.Granules) > 1 {
		return fmt.Sprintf("%s_%d", in.Group, i+1)
	}
	return in.Group
}

// SetDefaults registers the plan defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("unpack", true)
	v.SetDefault("fail_fast", true)
	v.SetDefault("workers", 0)
	v.SetDefault("orbit.epoch", string(orbit.TAI93))
}

// Env configures v to read TERRA_ prefixed overrides. TERRA_DATA_PACK=1
// keeps packed fields packed.
func Env(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("data_pack")
}

// Load decodes and validates the plan held by v.
func Load(v *viper.Viper) (*Plan, error) {
	const op = "load plan"
	SetDefaults(v)
	p := new(Plan)
	if err := v.Unmarshal(p); err != nil {
		return nil, errkind.E(errkind.InvalidConfig, op, v.ConfigFileUsed(), err)
	}
	if v.GetBool("data_pack") {
		p.Unpack = false
	}
	if err := p.Validate(); err != nil {
		return nil, errkind.E(errkind.InvalidConfig, op, v.ConfigFileUsed(), err)
	}
	return p, nil
}

// ReadFile reads a plan file with environment overrides applied.
func ReadFile(path string) (*Plan, error) {
	v := viper.New()
	Env(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errkind.E(errkind.InvalidConfig, "read plan", path, err)
	}
	return Load(v)
}

// Validate checks the plan's structure.
func (p *Plan) Validate() error {
	if err := validate.Struct(p); err != nil {
		return formatValidationError(err)
	}
	seen := make(map[string]bool, len(p.Instruments))
	for _, in := range p.Instruments {
		if seen[in.Name] {
			return fmt.Errorf("Instruments: %q listed twice", in.Name)
		}
		seen[in.Name] = true
		if len(in.Granules) > 0 && len(in.Fields) == 0 {
			return fmt.Errorf("Instruments: %s has granules but no fields", in.Name)
		}
		dests := make(map[string]bool, len(in.Fields))
		for _, f := range in.Fields {
			if dests[f.Dest] {
				return fmt.Errorf("Fields: %s/%s written twice", in.Name, f.Dest)
			}
			dests[f.Dest] = true
			if f.Packed() && f.Type != "" && f.Type != "f32" && f.Type != "f64" {
				return fmt.Errorf("Fields: %s unpacks into %s", f.Src, f.Type)
			}
		}
	}
	return nil
}

// Marshal renders the plan as YAML.
func (p *Plan) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

func formatValidationError(err error) error {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	for _, e := range validationErrs {
		field := e.Namespace()
		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "required_with":
			return fmt.Errorf("%s: required with %s", field, e.Param())
		case "min":
			return fmt.Errorf("%s: must have at least %s entries", field, e.Param())
		case "gt":
			return fmt.Errorf("%s: must be greater than %s", field, e.Param())
		case "gte":
			return fmt.Errorf("%s: must be at least %s", field, e.Param())
		case "oneof":
			return fmt.Errorf("%s: must be one of %s", field, e.Param())
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}
	return err
}
