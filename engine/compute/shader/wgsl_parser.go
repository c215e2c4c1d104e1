package shader

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// wgslStorageAccessMap maps WGSL access mode keywords to their wgpu storage texture access
var wgslStorageAccessMap = map[string]wgpu.StorageTextureAccess{
	"write":      wgpu.StorageTextureAccessWriteOnly,
	"read":       wgpu.StorageTextureAccessReadOnly,
	"read_write": wgpu.StorageTextureAccessReadWrite,
}

// wgslTexelFormatMap maps the WGSL texel formats used by the voxel passes to wgpu texture formats.
var wgslTexelFormatMap = map[string]wgpu.TextureFormat{
	"rgba8unorm":  wgpu.TextureFormatRGBA8Unorm,
	"rgba16float": wgpu.TextureFormatRGBA16Float,
	"rgba32float": wgpu.TextureFormatRGBA32Float,
	"r32uint":     wgpu.TextureFormatR32Uint,
	"bgra8unorm":  wgpu.TextureFormatBGRA8Unorm,
}

// wgslSampleTypeMap maps WGSL scalar type parameters to their wgpu texture sample type
var wgslSampleTypeMap = map[string]wgpu.TextureSampleType{
	"f32": wgpu.TextureSampleTypeFloat,
	"i32": wgpu.TextureSampleTypeSint,
	"u32": wgpu.TextureSampleTypeUint,
}

var (
	// bindingRegex matches `@group(G) @binding(B) var<space> name: type;`
	bindingRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+);`)

	// computeRegex matches `@compute @workgroup_size(X[, Y[, Z]]) fn name`
	computeRegex = regexp.MustCompile(`@compute\s*@workgroup_size\(([^)]*)\)\s*fn\s+(\w+)`)

	// workGroupSizeRegex matches the attribute alone, for rewriting
	workGroupSizeRegex = regexp.MustCompile(`@workgroup_size\([^)]*\)`)

	// vertexRegex and fragmentRegex capture the render entry point names
	vertexRegex   = regexp.MustCompile(`@vertex\s*fn\s+(\w+)`)
	fragmentRegex = regexp.MustCompile(`@fragment\s*fn\s+(\w+)`)

	// lineCommentRegex strips // comments before matching
	lineCommentRegex = regexp.MustCompile(`//[^\n]*`)
)

var (
	errMissingComputeEntry = errors.New("no @compute entry point with @workgroup_size")
	errMissingRenderEntry  = errors.New("render module needs both @vertex and @fragment entry points")
)

// parseWGSL fills in the entry points, workgroup size and bind group layouts of s from its source.
func parseWGSL(s *shader) error {
	src := lineCommentRegex.ReplaceAllString(s.source, "")

	visibility := wgpu.ShaderStageCompute
	switch s.shaderType {
	case ShaderTypeCompute:
		m := computeRegex.FindStringSubmatch(src)
		if m == nil {
			return errMissingComputeEntry
		}
		s.entryPoint = m[2]
		s.workGroupSize = parseWorkGroupSize(m[1])
	case ShaderTypeRender:
		vm := vertexRegex.FindStringSubmatch(src)
		fm := fragmentRegex.FindStringSubmatch(src)
		if vm == nil || fm == nil {
			return errMissingRenderEntry
		}
		s.vertexEntryPoint = vm[1]
		s.fragmentEntryPoint = fm[1]
		visibility = wgpu.ShaderStageVertex | wgpu.ShaderStageFragment
	}

	entries := make(map[int][]wgpu.BindGroupLayoutEntry)
	s.bindingVarNames = make(map[int]map[int]string)
	for _, m := range bindingRegex.FindAllStringSubmatch(src, -1) {
		group, _ := strconv.Atoi(m[1])
		binding, _ := strconv.Atoi(m[2])
		addressSpace := strings.TrimSpace(m[3])
		name := m[4]
		typeName := strings.TrimSpace(m[5])

		entries[group] = append(entries[group], classifyResource(uint32(binding), visibility, addressSpace, typeName))
		if s.bindingVarNames[group] == nil {
			s.bindingVarNames[group] = make(map[int]string)
		}
		s.bindingVarNames[group][binding] = name
	}

	s.bindGroupLayoutDescriptors = make(map[int]wgpu.BindGroupLayoutDescriptor, len(entries))
	for group, es := range entries {
		sort.Slice(es, func(i, j int) bool { return es[i].Binding < es[j].Binding })
		s.bindGroupLayoutDescriptors[group] = wgpu.BindGroupLayoutDescriptor{
			Label:   s.key + " Group " + strconv.Itoa(group),
			Entries: es,
		}
	}
	return nil
}

// parseWorkGroupSize parses the @workgroup_size argument list. Missing axes default to 1.
func parseWorkGroupSize(args string) [3]uint32 {
	size := [3]uint32{1, 1, 1}
	for i, part := range strings.Split(args, ",") {
		if i > 2 {
			break
		}
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if v, err := strconv.ParseUint(part, 10, 32); err == nil {
			size[i] = uint32(v)
		}
	}
	return size
}

// overrideWorkGroupSize rewrites every @workgroup_size attribute in src to size.
func overrideWorkGroupSize(src string, size [3]uint32) string {
	for i := range size {
		size[i] = max(size[i], 1)
	}
	attr := fmt.Sprintf("@workgroup_size(%d, %d, %d)", size[0], size[1], size[2])
	return workGroupSizeRegex.ReplaceAllLiteralString(src, attr)
}

// classifyResource builds the bind group layout entry for a single WGSL resource declaration.
// The address space qualifier decides buffers; handle types are classified by type name.
//
// Parameters:
//   - binding: the binding index from @binding(N)
//   - visibility: the shader stage visibility flag
//   - addressSpace: the address space qualifier (e.g. "uniform", "storage, read_write"), empty for handle types
//   - typeName: the WGSL type string (e.g. "FrameConstants", "texture_storage_2d<rgba8unorm, write>")
//
// Returns:
//   - wgpu.BindGroupLayoutEntry: a fully populated layout entry for the resource
func classifyResource(binding uint32, visibility wgpu.ShaderStage, addressSpace, typeName string) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: visibility,
	}

	if addressSpace != "" {
		switch {
		case addressSpace == "uniform":
			entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		case strings.HasPrefix(addressSpace, "storage"):
			if strings.Contains(addressSpace, "read_write") {
				entry.Buffer.Type = wgpu.BufferBindingTypeStorage
			} else {
				entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
			}
		}
		return entry
	}

	base, params := splitTypeParams(typeName)
	switch base {
	case "texture_storage_2d":
		entry.StorageTexture.ViewDimension = wgpu.TextureViewDimension2D
		parts := strings.SplitN(params, ",", 2)
		if format, ok := wgslTexelFormatMap[strings.TrimSpace(parts[0])]; ok {
			entry.StorageTexture.Format = format
		}
		if len(parts) == 2 {
			if access, ok := wgslStorageAccessMap[strings.TrimSpace(parts[1])]; ok {
				entry.StorageTexture.Access = access
			}
		}
	case "texture_2d":
		entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
		entry.Texture.SampleType = wgslSampleTypeMap[strings.TrimSpace(params)]
	}

	return entry
}

// splitTypeParams splits a WGSL parameterized type into its base name and parameter string.
// For "texture_2d<f32>" returns ("texture_2d", "f32").
func splitTypeParams(typeName string) (string, string) {
	open := strings.Index(typeName, "<")
	if open < 0 {
		return typeName, ""
	}
	end := strings.LastIndex(typeName, ">")
	if end < open {
		end = len(typeName)
	}
	return strings.TrimSpace(typeName[:open]), typeName[open+1 : end]
}
