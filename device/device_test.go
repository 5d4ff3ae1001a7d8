package device

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Builder", func() {
	It("should build a device from a profile", func() {
		p, err := BuiltinProfile("dg2")
		Expect(err).ToNot(HaveOccurred())

		d := MakeBuilder().WithProfile(p).Build("GPU")

		Expect(d.Name).To(Equal("GPU"))
		Expect(d.Capabilities.Generation).To(Equal(Gen125))
		Expect(d.Table.Quirks.SBAInvalidatesInstructionCache).To(BeTrue())
		Expect(d.Pools.All()).To(HaveLen(5))
		Expect(d.DefaultL3).ToNot(BeNil())

		cfg, ok := d.L3("compute")
		Expect(ok).To(BeTrue())
		Expect(cfg.SLM).To(BeNumerically(">", 0))
	})

	It("should not share the table with the profile", func() {
		p, _ := BuiltinProfile("skl")
		d := MakeBuilder().WithProfile(p).Build("GPU")

		d.Table.Quirks.CSStallInGPGPU = true

		Expect(p.Table.Quirks.CSStallInGPGPU).To(BeFalse())
	})
})

var _ = Describe("BlockPool", func() {
	It("should move on growth when relocating", func() {
		pool := NewBlockPool(0x1000, 0x1000, true)

		Expect(pool.Grow(0x800)).To(BeFalse())
		Expect(pool.Grow(0x4000)).To(BeTrue())

		addr, size := pool.BaseAddress()
		Expect(addr).To(Equal(uint64(0x2000)))
		Expect(size).To(Equal(uint64(0x4000)))
		Expect(pool.Epoch()).To(Equal(uint64(1)))
	})

	It("should keep its address when pinned", func() {
		pool := NewBlockPool(0x1000, 0x1000, false)
		pool.Grow(0x4000)

		addr, _ := pool.BaseAddress()
		Expect(addr).To(Equal(uint64(0x1000)))
	})
})

var _ = Describe("Debug", func() {
	It("should parse flag lists", func() {
		d, err := ParseDebug("pc, l3", "1")
		Expect(err).ToNot(HaveOccurred())
		Expect(d).To(Equal(Debug{PipeControl: true, L3: true, AlwaysFlushCache: true}))

		_, err = ParseDebug("bogus", "")
		Expect(err).To(HaveOccurred())
	})

	It("should load .env files", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, ".env")
		Expect(os.WriteFile(path,
			[]byte(EnvDebug+"=pc\n"+EnvAlwaysFlush+"=false\n"), 0o644)).
			To(Succeed())

		GinkgoT().Setenv(EnvDebug, "")
		Expect(os.Unsetenv(EnvDebug)).To(Succeed())
		GinkgoT().Setenv(EnvAlwaysFlush, "")
		Expect(os.Unsetenv(EnvAlwaysFlush)).To(Succeed())

		d, err := LoadDebug(path, filepath.Join(dir, "missing.env"))
		Expect(err).ToNot(HaveOccurred())
		Expect(d.PipeControl).To(BeTrue())
		Expect(d.L3).To(BeFalse())
		Expect(d.AlwaysFlushCache).To(BeFalse())
	})
})
