package device

// A Pool is a memory region that backs one of the state base address
// registers.
type Pool interface {
	// BaseAddress returns the current start address and size of the pool.
	BaseAddress() (address uint64, size uint64)

	// Epoch increases every time the pool is reallocated.
	Epoch() uint64
}

// BlockPool is a growable pool. Growing it with relocations moves the pool
// to a new address.
type BlockPool struct {
	address    uint64
	size       uint64
	epoch      uint64
	relocating bool
}

// NewBlockPool creates a pool at the given address.
func NewBlockPool(address, size uint64, relocating bool) *BlockPool {
	return &BlockPool{
		address:    address,
		size:       size,
		relocating: relocating,
	}
}

// BaseAddress returns the pool start and size.
func (p *BlockPool) BaseAddress() (uint64, uint64) {
	return p.address, p.size
}

// Epoch returns the number of reallocations so far.
func (p *BlockPool) Epoch() uint64 {
	return p.epoch
}

// Grow reallocates the pool to at least newSize bytes. It returns false if
// the pool is already large enough.
func (p *BlockPool) Grow(newSize uint64) bool {
	if newSize <= p.size {
		return false
	}

	if p.relocating {
		p.address += p.size
	}

	p.size = newSize
	p.epoch++

	return true
}

// Pools are the five pools addressed by state base address.
type Pools struct {
	General         Pool
	Dynamic         Pool
	Instruction     Pool
	Surface         Pool
	BindlessSurface Pool
}

// All returns the pools in a fixed order, skipping nil ones.
func (p Pools) All() []Pool {
	all := []Pool{}

	for _, pool := range []Pool{
		p.General, p.Dynamic, p.Instruction, p.Surface, p.BindlessSurface,
	} {
		if pool != nil {
			all = append(all, pool)
		}
	}

	return all
}

// DefaultPools creates block pools at the fixed addresses used when the
// device does not supply its own.
func DefaultPools(relocating bool) Pools {
	const (
		mib = uint64(1) << 20
		gib = uint64(1) << 30
	)

	return Pools{
		General:         NewBlockPool(0, 4*gib, relocating),
		Dynamic:         NewBlockPool(1*gib, 16*mib, relocating),
		Instruction:     NewBlockPool(2*gib, 16*mib, relocating),
		Surface:         NewBlockPool(3*gib, 16*mib, relocating),
		BindlessSurface: NewBlockPool(4*gib, 64*mib, relocating),
	}
}
