package pipebits

// Access is a set of memory access scopes used by pipeline barriers.
type Access uint32

// Memory access scopes.
const (
	AccessIndirectCommandRead Access = 1 << iota
	AccessIndexRead
	AccessVertexAttributeRead
	AccessUniformRead
	AccessInputAttachmentRead
	AccessShaderRead
	AccessShaderWrite
	AccessShaderSampledRead
	AccessShaderStorageWrite
	AccessColorAttachmentWrite
	AccessDepthStencilWrite
	AccessTransferRead
	AccessTransferWrite
	AccessHostWrite
	AccessMemoryRead
	AccessMemoryWrite
	AccessTransformFeedbackWrite
	AccessTransformFeedbackCounterRead
	AccessTransformFeedbackCounterWrite
	AccessConditionalRenderingRead
	AccessNone Access = 0
)

var accessNames = map[string]Access{
	"indirect_command_read":      AccessIndirectCommandRead,
	"index_read":                 AccessIndexRead,
	"vertex_attribute_read":      AccessVertexAttributeRead,
	"uniform_read":               AccessUniformRead,
	"input_attachment_read":      AccessInputAttachmentRead,
	"shader_read":                AccessShaderRead,
	"shader_write":               AccessShaderWrite,
	"shader_sampled_read":        AccessShaderSampledRead,
	"shader_storage_write":       AccessShaderStorageWrite,
	"color_attachment_write":     AccessColorAttachmentWrite,
	"depth_stencil_write":        AccessDepthStencilWrite,
	"transfer_read":              AccessTransferRead,
	"transfer_write":             AccessTransferWrite,
	"host_write":                 AccessHostWrite,
	"memory_read":                AccessMemoryRead,
	"memory_write":               AccessMemoryWrite,
	"xfb_write":                  AccessTransformFeedbackWrite,
	"xfb_counter_read":           AccessTransformFeedbackCounterRead,
	"xfb_counter_write":          AccessTransformFeedbackCounterWrite,
	"conditional_rendering_read": AccessConditionalRenderingRead,
}

// ParseAccess converts a list of access names into an Access set.
func ParseAccess(names []string) (Access, error) {
	var a Access

	for _, n := range names {
		bit, ok := accessNames[n]
		if !ok {
			return 0, &UnknownAccessError{Name: n}
		}

		a |= bit
	}

	return a, nil
}

// UnknownAccessError is returned by ParseAccess for names it does not know.
type UnknownAccessError struct {
	Name string
}

func (e *UnknownAccessError) Error() string {
	return "unknown access scope " + e.Name
}

// FlushBitsForAccess returns the flushes that make writes performed through
// the given source access scopes available.
func FlushBitsForAccess(src Access) Bits {
	var b Bits

	for bit := Access(1); bit != 0 && bit <= src; bit <<= 1 {
		if src&bit == 0 {
			continue
		}

		switch bit {
		case AccessShaderWrite, AccessShaderStorageWrite:
			b |= HDCPipelineFlush | UntypedDataportCacheFlush
		case AccessColorAttachmentWrite:
			b |= RenderTargetCacheFlush
		case AccessDepthStencilWrite:
			b |= DepthCacheFlush
		case AccessTransferWrite:
			b |= RenderTargetCacheFlush | DepthCacheFlush
		case AccessMemoryWrite:
			b |= FlushBits
		case AccessHostWrite:
			// Data and tile caches have no invalidate, so they are flushed.
			b |= FlushBits | InvalidateBits
		case AccessTransformFeedbackWrite, AccessTransformFeedbackCounterWrite:
			b |= CSStall
		}
	}

	return b
}

// InvalidateBitsForAccess returns the invalidations that make memory visible
// to the given destination access scopes. uniformsViaSampler tells whether
// indirect uniform loads go through the sampler rather than the data port.
func InvalidateBitsForAccess(dst Access, uniformsViaSampler bool) Bits {
	var b Bits

	for bit := Access(1); bit != 0 && bit <= dst; bit <<= 1 {
		if dst&bit == 0 {
			continue
		}

		switch bit {
		case AccessIndirectCommandRead:
			// The command streamer loads registers from the buffer and the
			// vertex fetcher reads base vertex from it.
			b |= CSStall | VFCacheInvalidate | ConstantCacheInvalidate |
				DataCacheFlush | TileCacheFlush
		case AccessIndexRead, AccessVertexAttributeRead:
			b |= VFCacheInvalidate
		case AccessUniformRead:
			b |= ConstantCacheInvalidate
			b |= uniformLoadBits(uniformsViaSampler)
		case AccessInputAttachmentRead, AccessTransferRead,
			AccessShaderSampledRead:
			b |= TextureCacheInvalidate
		case AccessShaderRead:
			b |= ConstantCacheInvalidate | TextureCacheInvalidate
			if !uniformsViaSampler {
				b |= HDCPipelineFlush | UntypedDataportCacheFlush
			}
		case AccessMemoryRead:
			b |= InvalidateBits
		case AccessMemoryWrite:
			b |= FlushBits
		case AccessConditionalRenderingRead,
			AccessTransformFeedbackCounterRead:
			b |= CSStall | TileCacheFlush | DataCacheFlush
		}
	}

	return b
}

func uniformLoadBits(viaSampler bool) Bits {
	if viaSampler {
		return TextureCacheInvalidate
	}

	return HDCPipelineFlush | UntypedDataportCacheFlush
}
