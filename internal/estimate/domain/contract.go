package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/brakes/brakes-estimator/pkg/errors"
	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const contractMessage = "Estimate service response does not match the expected contract"

var numberSchema = map[string]any{"type": "number"}

// estimateSchema pins down the fields every derived sort key reads
var estimateSchema = map[string]any{
	"type":     "object",
	"required": []any{"estimate_id", "items"},
	"properties": map[string]any{
		"estimate_id": map[string]any{"type": "string", "minLength": 1},
		"total_cost":  numberSchema,
		"confidence":  numberSchema,
		"items": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"intervention", "total_cost"},
				"properties": map[string]any{
					"total_cost": numberSchema,
					"materials":  map[string]any{"type": []any{"array", "null"}},
					"intervention": map[string]any{
						"type":     "object",
						"required": []any{"type", "quantity", "confidence"},
						"properties": map[string]any{
							"type":       map[string]any{"type": "string"},
							"quantity":   numberSchema,
							"confidence": numberSchema,
						},
					},
				},
			},
		},
	},
}

var missingProps = regexp.MustCompile(`['"]([^'"]+)['"]`)

// ContractChecker verifies estimate payloads before and after decoding.
// Safe for concurrent use.
type ContractChecker struct {
	schema   *jsonschema.Schema
	validate *validator.Validate
}

// NewContractChecker compiles the estimate schema
func NewContractChecker() (*ContractChecker, error) {
	b, err := json.Marshal(estimateSchema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("estimate.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("estimate.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &ContractChecker{schema: schema, validate: v}, nil
}

// CheckEstimatePayload validates the raw estimate object. Every offending
// field is listed in the error details keyed by path.
func (c *ContractChecker) CheckEstimatePayload(raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return errors.Contract(contractMessage, map[string]string{"estimate": "not valid JSON"})
	}

	err := c.schema.Validate(doc)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return errors.Contract(contractMessage, map[string]string{"estimate": err.Error()})
	}

	details := make(map[string]string)
	collectLeaves(verr, details)
	return errors.Contract(contractMessage, details)
}

// CheckEstimate applies the range rules to a decoded estimate
func (c *ContractChecker) CheckEstimate(e *Estimate) error {
	return c.checkStruct(e)
}

// CheckUploadResult applies the range rules to an upload summary
func (c *ContractChecker) CheckUploadResult(r *UploadResult) error {
	return c.checkStruct(r)
}

func (c *ContractChecker) checkStruct(v any) error {
	err := c.validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.Contract(contractMessage, map[string]string{"payload": err.Error()})
	}

	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		path := fe.Namespace()
		if i := strings.IndexByte(path, '.'); i >= 0 {
			path = path[i+1:]
		}
		details[path] = describeRule(fe)
	}
	return errors.Contract(contractMessage, details)
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}

func collectLeaves(verr *jsonschema.ValidationError, out map[string]string) {
	if len(verr.Causes) > 0 {
		for _, cause := range verr.Causes {
			collectLeaves(cause, out)
		}
		return
	}

	base := pointerToPath(verr.InstanceLocation)
	if strings.HasSuffix(verr.KeywordLocation, "/required") {
		for _, m := range missingProps.FindAllStringSubmatch(verr.Message, -1) {
			out[joinPath(base, m[1])] = "is required"
		}
		return
	}

	if base == "" {
		base = "estimate"
	}
	out[base] = verr.Message
}

// pointerToPath turns "/items/2/intervention" into "items[2].intervention"
func pointerToPath(pointer string) string {
	var b strings.Builder
	for _, seg := range strings.Split(strings.TrimPrefix(pointer, "/"), "/") {
		if seg == "" {
			continue
		}
		seg = strings.ReplaceAll(strings.ReplaceAll(seg, "~1", "/"), "~0", "~")
		if _, err := strconv.Atoi(seg); err == nil {
			b.WriteString("[" + seg + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg)
	}
	return b.String()
}

func joinPath(base, field string) string {
	if base == "" {
		return field
	}
	return base + "." + field
}
