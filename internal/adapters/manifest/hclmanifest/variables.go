package hclmanifest

import (
	"context"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/typeexpr"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/olusolaa/vm-reconciler/internal/core/ports"
)

// EnvVarPrefix marks environment variables that set manifest variables,
// e.g. VMR_VAR_admin_password.
const EnvVarPrefix = "VMR_VAR_"

type variableDefinition struct {
	Name       string
	Type       cty.Type
	Default    cty.Value
	HasDefault bool
	Sensitive  bool
	DeclRange  hcl.Range
}

var variableBlockSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "description"},
		{Name: "default"},
		{Name: "sensitive"},
		{Name: "type"},
	},
}

func decodeVariableBlock(block *hcl.Block) (*variableDefinition, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	content, contentDiags := block.Body.Content(variableBlockSchema)
	diags = append(diags, contentDiags...)
	if hasFatalErrors(contentDiags) {
		return nil, diags
	}

	def := &variableDefinition{
		Name:      block.Labels[0],
		Type:      cty.DynamicPseudoType,
		DeclRange: block.DefRange,
	}

	if attr, exists := content.Attributes["type"]; exists {
		ty, tyDiags := typeexpr.TypeConstraint(attr.Expr)
		diags = append(diags, tyDiags...)
		if !hasFatalErrors(tyDiags) {
			def.Type = ty
		}
	}

	if attr, exists := content.Attributes["default"]; exists {
		defaultVal, defaultDiags := attr.Expr.Value(nil)
		diags = append(diags, defaultDiags...)
		if !hasFatalErrors(defaultDiags) {
			def.Default = defaultVal
			def.HasDefault = true
		}
	}

	if attr, exists := content.Attributes["sensitive"]; exists {
		sensVal, sensDiags := attr.Expr.Value(nil)
		diags = append(diags, sensDiags...)
		if !hasFatalErrors(sensDiags) && !sensVal.IsNull() && sensVal.IsKnown() && sensVal.Type() == cty.Bool {
			def.Sensitive = sensVal.True()
		} else if !sensVal.IsNull() && sensVal.IsKnown() {
			diags = diags.Append(&hcl.Diagnostic{Severity: hcl.DiagError, Summary: "Invalid sensitive value", Detail: "The 'sensitive' attribute must be a boolean.", Subject: attr.Expr.Range().Ptr()})
		}
	}

	return def, diags
}

// loadVarsFromFile reads top-level attributes from an HCL or JSON variables
// file. Values must be literals.
func loadVarsFromFile(ctx context.Context, parser *hclparse.Parser, path string, logger ports.Logger) (map[string]cty.Value, hcl.Diagnostics) {
	vars := make(map[string]cty.Value)
	var diags hcl.Diagnostics

	src, err := os.ReadFile(path)
	if err != nil {
		diags = diags.Append(&hcl.Diagnostic{Severity: hcl.DiagError, Summary: "Cannot read variables file", Detail: err.Error(), Subject: &hcl.Range{Filename: path}})
		return nil, diags
	}

	var file *hcl.File
	var parseDiags hcl.Diagnostics
	if strings.HasSuffix(path, ".json") {
		file, parseDiags = parser.ParseJSON(src, path)
	} else {
		file, parseDiags = parser.ParseHCL(src, path)
	}
	diags = append(diags, parseDiags...)
	if file == nil || hasFatalErrors(diags) {
		return nil, diags
	}

	attrs, attrDiags := file.Body.JustAttributes()
	diags = append(diags, attrDiags...)
	if hasFatalErrors(attrDiags) {
		return nil, diags
	}

	for name, attr := range attrs {
		if err := ctx.Err(); err != nil {
			logger.Warnf(ctx, "Context cancelled while evaluating variables file %s", path)
			return vars, diags
		}
		val, valDiags := attr.Expr.Value(nil)
		diags = append(diags, valDiags...)
		if !hasFatalErrors(valDiags) {
			vars[name] = val
		}
	}
	logger.Debugf(ctx, "Loaded %d variables from %s", len(vars), path)
	return vars, diags
}

// resolveVariables merges defaults, variables files in order and
// environment overrides, then converts each value to its declared type.
func resolveVariables(
	ctx context.Context,
	parser *hclparse.Parser,
	defs map[string]*variableDefinition,
	varFiles []string,
	environ []string,
	logger ports.Logger,
) (map[string]cty.Value, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	values := make(map[string]cty.Value, len(defs))
	for name, def := range defs {
		if def.HasDefault {
			values[name] = def.Default
		}
	}

	for _, path := range varFiles {
		fileVars, fileDiags := loadVarsFromFile(ctx, parser, path, logger)
		diags = append(diags, fileDiags...)
		for name, val := range fileVars {
			if _, declared := defs[name]; !declared {
				diags = diags.Append(&hcl.Diagnostic{Severity: hcl.DiagWarning, Summary: "Value for undeclared variable", Detail: "The variables file sets \"" + name + "\" but no variable block declares it.", Subject: &hcl.Range{Filename: path}})
				continue
			}
			values[name] = val
		}
	}

	for _, kv := range environ {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvVarPrefix) {
			continue
		}
		name := strings.TrimPrefix(key, EnvVarPrefix)
		if _, declared := defs[name]; declared {
			values[name] = cty.StringVal(raw)
		}
	}

	for name, def := range defs {
		val, set := values[name]
		if !set {
			diags = diags.Append(&hcl.Diagnostic{Severity: hcl.DiagError, Summary: "No value for required variable", Detail: "The variable \"" + name + "\" has no default and was not set.", Subject: def.DeclRange.Ptr()})
			continue
		}
		converted, convDiags := convertVarType(val, def.Type, def.DeclRange)
		diags = append(diags, convDiags...)
		if !hasFatalErrors(convDiags) {
			values[name] = converted
		}
	}
	return values, diags
}

func convertVarType(val cty.Value, targetType cty.Type, subjectRange hcl.Range) (cty.Value, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	if targetType == cty.DynamicPseudoType || !val.IsKnown() {
		return val, diags
	}

	convVal, err := convert.Convert(val, targetType)
	if err != nil {
		diags = diags.Append(&hcl.Diagnostic{Severity: hcl.DiagError, Summary: "Incorrect variable type", Detail: err.Error(), Subject: &subjectRange})
		return cty.NilVal, diags
	}
	return convVal, diags
}
