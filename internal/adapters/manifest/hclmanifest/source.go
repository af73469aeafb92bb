package hclmanifest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/olusolaa/vm-reconciler/internal/core/domain"
	"github.com/olusolaa/vm-reconciler/internal/core/ports"
	"github.com/olusolaa/vm-reconciler/internal/errors"
)

const Format = "hcl"

var rootSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "variable", LabelNames: []string{"name"}},
		{Type: "machine", LabelNames: []string{"name"}},
	},
}

// machineBlock is the body of a machine "<name>" { ... } block.
type machineBlock struct {
	Ensure   string `hcl:"ensure,optional"`
	Image    string `hcl:"image,optional"`
	Location string `hcl:"location,optional"`
	Size     string `hcl:"size,optional"`
	User     string `hcl:"user,optional"`
	Password string `hcl:"password,optional"`
}

// Source loads desired machines from an HCL file or from every .hcl and
// .hcl.json file in a directory.
type Source struct {
	path     string
	varFiles []string
	environ  func() []string
	logger   ports.Logger
}

func New(path string, varFiles []string, logger ports.Logger) *Source {
	return &Source{
		path:     path,
		varFiles: varFiles,
		environ:  os.Environ,
		logger:   logger.WithFields(map[string]any{"component": "hcl_manifest", "manifest_path": path}),
	}
}

func (s *Source) Type() string {
	return Format
}

func (s *Source) Load(ctx context.Context) ([]domain.DesiredResource, error) {
	parser := hclparse.NewParser()
	files, err := s.parseFiles(ctx, parser)
	if err != nil {
		return nil, err
	}

	body := hcl.MergeFiles(files)
	content, diags := body.Content(rootSchema)
	if hasFatalErrors(diags) {
		return nil, s.diagError("decoding", diags)
	}

	defs := make(map[string]*variableDefinition)
	var machineBlocks []*hcl.Block
	for _, block := range content.Blocks {
		switch block.Type {
		case "variable":
			def, defDiags := decodeVariableBlock(block)
			diags = append(diags, defDiags...)
			if def == nil {
				continue
			}
			if prev, exists := defs[def.Name]; exists {
				diags = diags.Append(&hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Duplicate variable definition",
					Detail:   fmt.Sprintf("Variable %q was already defined at %s.", def.Name, prev.DeclRange),
					Subject:  block.DefRange.Ptr(),
				})
				continue
			}
			defs[def.Name] = def
		case "machine":
			machineBlocks = append(machineBlocks, block)
		}
	}
	if hasFatalErrors(diags) {
		return nil, s.diagError("loading variables", diags)
	}

	vars, varDiags := resolveVariables(ctx, parser, defs, s.varFiles, s.environ(), s.logger)
	diags = append(diags, varDiags...)
	if hasFatalErrors(diags) {
		return nil, s.diagError("resolving variables", diags)
	}
	sensitive := 0
	for _, def := range defs {
		if def.Sensitive {
			sensitive++
		}
	}
	s.logger.Debugf(ctx, "Resolved %d variables (%d sensitive)", len(vars), sensitive)

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{"var": cty.ObjectVal(vars)},
		Functions: standardFunctions(),
	}

	resources := make([]domain.DesiredResource, 0, len(machineBlocks))
	for _, block := range machineBlocks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, blockDiags := decodeMachine(block, evalCtx)
		diags = append(diags, blockDiags...)
		if !hasFatalErrors(blockDiags) {
			resources = append(resources, res)
		}
	}
	if hasFatalErrors(diags) {
		return nil, s.diagError("evaluating machines", diags)
	}
	if len(diags) > 0 {
		s.logger.Warnf(ctx, "Non-fatal diagnostics while loading manifest:\n%s", diags.Error())
	}

	s.logger.Debugf(ctx, "Loaded %d machines", len(resources))
	return resources, nil
}

func decodeMachine(block *hcl.Block, evalCtx *hcl.EvalContext) (domain.DesiredResource, hcl.Diagnostics) {
	var mb machineBlock
	diags := gohcl.DecodeBody(block.Body, evalCtx, &mb)
	if hasFatalErrors(diags) {
		return domain.DesiredResource{}, diags
	}

	res := domain.DesiredResource{
		Name:     block.Labels[0],
		Image:    mb.Image,
		Location: mb.Location,
		Size:     mb.Size,
		User:     mb.User,
		Password: mb.Password,
	}
	if err := res.Ensure.UnmarshalText([]byte(mb.Ensure)); err != nil {
		diags = diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid ensure value",
			Detail:   err.Error(),
			Subject:  block.DefRange.Ptr(),
		})
	}
	return res, diags
}

func (s *Source) parseFiles(ctx context.Context, parser *hclparse.Parser) ([]*hcl.File, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, errors.WrapUserFacing(err, errors.CodeManifestReadError,
			fmt.Sprintf("cannot read manifest %s", s.path), "Check the manifest path.")
	}

	paths := []string{s.path}
	if info.IsDir() {
		entries, err := os.ReadDir(s.path)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeManifestReadError, fmt.Sprintf("failed to read manifest directory: %s", s.path))
		}
		paths = paths[:0]
		for _, entry := range entries {
			if !entry.IsDir() && isManifestFileName(entry.Name()) {
				paths = append(paths, filepath.Join(s.path, entry.Name()))
			}
		}
		if len(paths) == 0 {
			return nil, errors.NewUserFacing(errors.CodeManifestReadError,
				fmt.Sprintf("no manifest files (.hcl, .hcl.json) found in directory: %s", s.path),
				"Point the manifest path at a file or a directory containing .hcl files.")
		}
	}

	var diags hcl.Diagnostics
	files := make([]*hcl.File, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var file *hcl.File
		var fileDiags hcl.Diagnostics
		if strings.HasSuffix(path, ".json") {
			file, fileDiags = parser.ParseJSONFile(path)
		} else {
			file, fileDiags = parser.ParseHCLFile(path)
		}
		diags = append(diags, fileDiags...)
		if file != nil {
			files = append(files, file)
		}
	}
	if hasFatalErrors(diags) {
		return nil, s.diagError("parsing", diags)
	}
	return files, nil
}

func (s *Source) diagError(operation string, diags hcl.Diagnostics) error {
	return errors.WrapUserFacing(&DiagnosticsError{Operation: operation, Path: s.path, Diags: diags},
		errors.CodeManifestParseError,
		fmt.Sprintf("manifest %s is invalid:\n%s", s.path, diags.Error()),
		"Fix the reported HCL errors.")
}

func isManifestFileName(name string) bool {
	return strings.HasSuffix(name, ".hcl") || strings.HasSuffix(name, ".hcl.json")
}
