package flush

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/pipesync/device"
	"github.com/sarchlab/pipesync/pipebits"
)

var modes = []device.Mode{
	device.ModeInvalid, device.Mode3D, device.ModeGPGPU, device.ModeMedia,
}

func randomRequest(r *rand.Rand) pipebits.Bits {
	return pipebits.Bits(r.Uint32()) &
		(pipebits.ObligationBits | pipebits.MetaBits)
}

var _ = Describe("Resolve", func() {
	var (
		table *device.FlushTable
		caps  device.Capabilities
	)

	BeforeEach(func() {
		table = &device.FlushTable{}
		caps = device.Capabilities{
			Generation:        device.Gen9,
			WorkaroundAddress: 0x1000,
		}
	})

	It("should return nothing for an empty request", func() {
		for _, p := range device.BuiltinProfiles() {
			for _, m := range modes {
				plan, remaining := Resolve(
					pipebits.None, m, &p.Table, p.Capabilities)

				Expect(plan).To(BeNil())
				Expect(remaining).To(Equal(pipebits.None))
			}
		}
	})

	It("should flush before invalidating", func() {
		plan, remaining := Resolve(
			pipebits.RenderTargetCacheFlush|pipebits.TextureCacheInvalidate,
			device.Mode3D, table, caps)

		Expect(plan).To(HaveLen(2))
		Expect(plan[0].Flush).To(Equal(pipebits.RenderTargetCacheFlush))
		Expect(plan[0].Stall.Has(pipebits.EndOfPipeSync)).To(BeTrue())
		Expect(plan[0].Invalidate).To(BeZero())
		Expect(plan[1].Invalidate).To(Equal(pipebits.TextureCacheInvalidate))
		Expect(plan[1].Flush).To(BeZero())
		Expect(remaining).To(Equal(pipebits.None))
	})

	It("should write to the workaround address on end-of-pipe syncs", func() {
		plan, _ := Resolve(
			pipebits.DataCacheFlush|pipebits.ConstantCacheInvalidate,
			device.Mode3D, table, caps)

		Expect(plan[0].Stall.Has(pipebits.CSStall)).To(BeTrue())
		Expect(plan[0].PostSync).To(Equal(PostSync{
			Op:      PostSyncWriteImmediate,
			Address: 0x1000,
		}))
		Expect(plan[1].PostSync.Op).To(Equal(PostSyncNone))
	})

	It("should keep the end-of-pipe obligation of a lone flush", func() {
		plan, remaining := Resolve(
			pipebits.RenderTargetCacheFlush, device.Mode3D, table, caps)

		Expect(plan).To(HaveLen(1))
		Expect(plan[0].Stall.Has(pipebits.EndOfPipeSync)).To(BeFalse())
		Expect(remaining).To(Equal(pipebits.NeedsEndOfPipeSync))

		plan, remaining = Resolve(
			remaining|pipebits.TextureCacheInvalidate,
			device.Mode3D, table, caps)

		Expect(plan).To(HaveLen(2))
		Expect(plan[0].Flush).To(BeZero())
		Expect(plan[0].Stall.Has(pipebits.EndOfPipeSync)).To(BeTrue())
		Expect(plan[1].Invalidate).To(Equal(pipebits.TextureCacheInvalidate))
		Expect(remaining).To(Equal(pipebits.None))
	})

	It("should emit a degenerate barrier for stall only requests", func() {
		plan, remaining := Resolve(
			pipebits.CSStall, device.Mode3D, table, caps)

		Expect(plan).To(Equal(Plan{{Stall: pipebits.CSStall}}))
		Expect(remaining).To(Equal(pipebits.None))
	})

	It("should clear render target buffer writes on a render target flush",
		func() {
			_, remaining := Resolve(
				pipebits.RenderTargetBufferWrites, device.Mode3D, table, caps)
			Expect(remaining).To(Equal(pipebits.RenderTargetBufferWrites))

			_, remaining = Resolve(
				pipebits.RenderTargetBufferWrites|
					pipebits.RenderTargetCacheFlush|
					pipebits.StateCacheInvalidate,
				device.Mode3D, table, caps)
			Expect(remaining).To(Equal(pipebits.None))
		})

	It("should remap aux table invalidations in GPGPU mode", func() {
		p, err := device.BuiltinProfile("tgl")
		Expect(err).ToNot(HaveOccurred())

		plan, remaining := Resolve(pipebits.AuxTableInvalidate,
			device.ModeGPGPU, &p.Table, p.Capabilities)

		Expect(plan).To(HaveLen(2))
		Expect(plan[0].Flush.Has(pipebits.DataCacheFlush)).To(BeTrue())
		Expect(plan[0].Stall.Has(pipebits.EndOfPipeSync)).To(BeTrue())
		Expect(plan[1].Invalidate.Has(pipebits.AuxTableInvalidate)).
			To(BeTrue())
		Expect(plan[1].PostSync.Op).To(Equal(PostSyncWriteImmediate))
		Expect(remaining).To(Equal(pipebits.None))
	})

	It("should remap aux table invalidations in 3D mode", func() {
		p, _ := device.BuiltinProfile("tgl")

		plan, _ := Resolve(pipebits.AuxTableInvalidate,
			device.Mode3D, &p.Table, p.Capabilities)

		Expect(plan.Bits().Has(pipebits.RenderTargetCacheFlush |
			pipebits.StateCacheInvalidate)).To(BeTrue())
		Expect(plan.Bits().Has(pipebits.DataCacheFlush)).To(BeFalse())
	})

	It("should defer bits the mode cannot emit", func() {
		p, _ := device.BuiltinProfile("dg2")

		plan, remaining := Resolve(
			pipebits.VFCacheInvalidate|pipebits.TextureCacheInvalidate,
			device.ModeGPGPU, &p.Table, p.Capabilities)

		Expect(plan).To(HaveLen(1))
		Expect(plan[0].Invalidate).To(Equal(pipebits.TextureCacheInvalidate))
		Expect(remaining).To(Equal(pipebits.VFCacheInvalidate))

		plan, remaining = Resolve(
			remaining, device.Mode3D, &p.Table, p.Capabilities)

		Expect(plan.Bits().Has(pipebits.VFCacheInvalidate)).To(BeTrue())
		Expect(remaining).To(Equal(pipebits.None))
	})

	It("should hold invalidations back with a deferred flush", func() {
		p, _ := device.BuiltinProfile("dg2")

		plan, remaining := Resolve(
			pipebits.RenderTargetCacheFlush|pipebits.TextureCacheInvalidate,
			device.ModeGPGPU, &p.Table, p.Capabilities)

		Expect(plan).To(BeNil())
		Expect(remaining).To(Equal(
			pipebits.RenderTargetCacheFlush | pipebits.TextureCacheInvalidate))

		plan, remaining = Resolve(
			remaining, device.Mode3D, &p.Table, p.Capabilities)

		Expect(plan).To(HaveLen(2))
		Expect(plan[0].Flush.Has(pipebits.RenderTargetCacheFlush)).To(BeTrue())
		Expect(plan[0].Stall.Has(pipebits.EndOfPipeSync)).To(BeTrue())
		Expect(plan[1].Invalidate.Has(pipebits.TextureCacheInvalidate)).
			To(BeTrue())
		Expect(remaining).To(Equal(pipebits.None))
	})

	It("should hold the end-of-pipe sync back with its flushes", func() {
		p, _ := device.BuiltinProfile("dg2")

		plan, remaining := Resolve(
			pipebits.RenderTargetCacheFlush|pipebits.EndOfPipeSync,
			device.ModeGPGPU, &p.Table, p.Capabilities)

		Expect(plan).To(BeNil())
		Expect(remaining).To(Equal(
			pipebits.RenderTargetCacheFlush | pipebits.EndOfPipeSync))

		plan, _ = Resolve(
			pipebits.RenderTargetCacheFlush|pipebits.DataCacheFlush|
				pipebits.EndOfPipeSync,
			device.ModeGPGPU, &p.Table, p.Capabilities)

		Expect(plan).To(HaveLen(1))
		Expect(plan[0].Flush).To(Equal(pipebits.DataCacheFlush))
		Expect(plan[0].Stall.Has(pipebits.EndOfPipeSync)).To(BeTrue())
	})

	It("should only sync on flushes that are emitted", func() {
		p, _ := device.BuiltinProfile("dg2")

		plan, remaining := Resolve(
			pipebits.RenderTargetCacheFlush|pipebits.HDCPipelineFlush|
				pipebits.TextureCacheInvalidate,
			device.ModeGPGPU, &p.Table, p.Capabilities)

		Expect(plan).To(HaveLen(1))
		Expect(plan[0].Flush.Has(pipebits.HDCPipelineFlush)).To(BeTrue())
		Expect(plan[0].Flush.Has(pipebits.RenderTargetCacheFlush)).To(BeFalse())
		Expect(plan[0].Invalidate).To(BeZero())
		Expect(remaining.Has(pipebits.RenderTargetCacheFlush |
			pipebits.TextureCacheInvalidate)).To(BeTrue())
	})

	It("should drop a post-sync request with nothing to ride on", func() {
		plan, remaining := Resolve(pipebits.PostSync, device.Mode3D, table, caps)

		Expect(plan).To(BeNil())
		Expect(remaining).To(Equal(pipebits.None))

		plan, _ = Resolve(pipebits.PostSync|pipebits.CSStall,
			device.Mode3D, table, caps)

		Expect(plan).To(HaveLen(1))
		Expect(plan[0].PostSync.Op).To(Equal(PostSyncWriteImmediate))
	})

	Context("with quirks", func() {
		It("should add a CS stall in GPGPU mode", func() {
			table.Quirks.CSStallInGPGPU = true

			plan, _ := Resolve(
				pipebits.DataCacheFlush, device.ModeGPGPU, table, caps)
			Expect(plan[0].Stall.Has(pipebits.CSStall)).To(BeTrue())

			plan, _ = Resolve(
				pipebits.DataCacheFlush, device.Mode3D, table, caps)
			Expect(plan[0].Stall.Has(pipebits.CSStall)).To(BeFalse())
		})

		It("should reload a register after end-of-pipe syncs", func() {
			table.Quirks.EOPRegisterReload = true

			plan, _ := Resolve(pipebits.EndOfPipeSync,
				device.Mode3D, table, caps)
			Expect(plan[0].RegisterReload).To(BeTrue())

			plan, _ = Resolve(pipebits.CSStall, device.Mode3D, table, caps)
			Expect(plan[0].RegisterReload).To(BeFalse())
		})
	})

	It("should never lose a requested obligation", func() {
		r := rand.New(rand.NewSource(1))

		for _, p := range device.BuiltinProfiles() {
			for _, m := range modes {
				for range 200 {
					req := randomRequest(r)

					plan, remaining := Resolve(
						req, m, &p.Table, p.Capabilities)

					closure := p.Table.Remap(req, m) &
						pipebits.ObligationBits
					covered := plan.Bits() | remaining

					Expect(covered.Has(closure)).To(BeTrue(),
						"%s in %s: %s not covered by %s",
						p.Name, m, closure, covered)
				}
			}
		}
	})

	It("should always order flushes before invalidations", func() {
		r := rand.New(rand.NewSource(2))

		for _, p := range device.BuiltinProfiles() {
			for _, m := range modes {
				for range 200 {
					req := randomRequest(r) |
						pipebits.DataCacheFlush |
						pipebits.StateCacheInvalidate

					plan, _ := Resolve(req, m, &p.Table, p.Capabilities)

					lastFlush, firstInval := -1, len(plan)
					for i, b := range plan {
						if !b.Flush.IsEmpty() {
							lastFlush = i
						}

						if !b.Invalidate.IsEmpty() && i < firstInval {
							firstInval = i
						}

						Expect(b.Flush.IsEmpty() ||
							b.Invalidate.IsEmpty()).To(BeTrue())
					}

					Expect(lastFlush).To(BeNumerically("<", firstInval))
				}
			}
		}
	})
})

var _ = Describe("Resolver", func() {
	It("should use the device table", func() {
		p, _ := device.BuiltinProfile("dg2")
		d := device.MakeBuilder().WithProfile(p).Build("GPU")
		r := NewResolver(d)

		_, remaining := r.Resolve(pipebits.VFCacheInvalidate, device.ModeGPGPU)

		Expect(remaining).To(Equal(pipebits.VFCacheInvalidate))
		Expect(r.Capabilities().Generation).To(Equal(device.Gen125))
	})
})

var _ = Describe("Barrier", func() {
	It("should dump its content", func() {
		b := Barrier{
			Flush: pipebits.RenderTargetCacheFlush,
			Stall: pipebits.CSStall,
			PostSync: PostSync{
				Op: PostSyncWriteImmediate, Address: 0x1000, Value: 3,
			},
		}

		Expect(b.String()).To(Equal(
			"+rt_flush +cs_stall post_sync=write_imm@0x1000:3"))
		Expect(Plan{}.String()).To(Equal("[]"))
	})
})
