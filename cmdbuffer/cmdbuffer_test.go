package cmdbuffer

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/pipesync/device"
	"github.com/sarchlab/pipesync/emit"
	"github.com/sarchlab/pipesync/pipebits"
)

var _ = Describe("CmdBuffer", func() {
	var (
		d     *device.Device
		batch *emit.Batch
		cmd   *CmdBuffer
	)

	build := func(profile string) {
		d = newDevice(profile, device.Debug{})
		batch = emit.NewBatch(d, 0)
		cmd = MakeBuilder().
			WithDevice(d).
			WithEmitter(batch).
			Build("CmdBuf")

		Expect(cmd.Begin()).To(Succeed())
		Expect(cmd.ApplyPendingFlushes()).To(Succeed())
	}

	since := func(n int) []emit.Packet {
		return batch.Packets()[n:]
	}

	BeforeEach(func() {
		build("skl")
	})

	Context("pending bits", func() {
		It("should do nothing when nothing is pending", func() {
			n := len(batch.Packets())

			Expect(cmd.ApplyPendingFlushes()).To(Succeed())
			Expect(cmd.ApplyPendingFlushes()).To(Succeed())

			Expect(batch.Packets()).To(HaveLen(n))
		})

		It("should flush before invalidating", func() {
			n := len(batch.Packets())

			cmd.AddPendingBits(pipebits.RenderTargetCacheFlush, "render pass")
			cmd.AddPendingBits(pipebits.TextureCacheInvalidate, "sampling")
			Expect(cmd.ApplyPendingFlushes()).To(Succeed())

			barriers := barriersOf(since(n))
			Expect(barriers).To(HaveLen(2))
			Expect(barriers[0].Flush).To(Equal(pipebits.RenderTargetCacheFlush))
			Expect(barriers[0].Stall.Has(pipebits.EndOfPipeSync)).To(BeTrue())
			Expect(barriers[1].Invalidate).
				To(Equal(pipebits.TextureCacheInvalidate))
			Expect(cmd.PendingBits()).To(Equal(pipebits.None))
		})

		It("should number post-sync writes", func() {
			n := len(batch.Packets())
			seqNo := cmd.SyncSeqNo()

			cmd.AddPendingBits(pipebits.PostSync|pipebits.CSStall, "query")
			Expect(cmd.ApplyPendingFlushes()).To(Succeed())

			barrier := barriersOf(since(n))[0]
			Expect(barrier.PostSync.Value).To(Equal(seqNo + 1))
			Expect(barrier.PostSync.Address).
				To(Equal(d.Capabilities.WorkaroundAddress))
		})

		It("should translate pipeline barriers", func() {
			n := len(batch.Packets())

			cmd.PipelineBarrier(pipebits.AccessColorAttachmentWrite,
				pipebits.AccessShaderSampledRead, "blit")
			Expect(cmd.PendingBits()).To(Equal(
				pipebits.RenderTargetCacheFlush | pipebits.TextureCacheInvalidate))

			Expect(cmd.ApplyPendingFlushes()).To(Succeed())
			Expect(barriersOf(since(n))).To(HaveLen(2))
		})
	})

	Context("pipeline select", func() {
		It("should do nothing when the mode is already selected", func() {
			Expect(cmd.SwitchPipelineMode(device.Mode3D)).To(Succeed())
			n := len(batch.Packets())

			Expect(cmd.SwitchPipelineMode(device.Mode3D)).To(Succeed())

			Expect(batch.Packets()).To(HaveLen(n))
		})

		It("should resolve the bracket before selecting", func() {
			Expect(cmd.SwitchPipelineMode(device.Mode3D)).To(Succeed())
			n := len(batch.Packets())

			Expect(cmd.SwitchPipelineMode(device.ModeGPGPU)).To(Succeed())

			packets := since(n)
			Expect(kindsOf(packets)).To(Equal([]emit.Kind{
				emit.KindBarrier,
				emit.KindBarrier,
				emit.KindWorkaround,
				emit.KindModeSelect,
			}))
			Expect(packets[2].Workaround).To(Equal("clear_cc_state_pointers"))

			bracket := d.Table.Bracket(device.Mode3D, device.ModeGPGPU)
			Expect(cmd.PendingBits() & bracket).To(BeZero())
			Expect(cmd.Mode()).To(Equal(device.ModeGPGPU))
		})

		It("should re-emit 3D state after selecting 3D", func() {
			n := len(batch.Packets())

			Expect(cmd.SwitchPipelineMode(device.Mode3D)).To(Succeed())

			packets := since(n)
			Expect(packets[len(packets)-1].Kind).To(Equal(emit.KindWorkaround))
			Expect(packets[len(packets)-1].Workaround).
				To(Equal("reemit_3d_state"))
		})

		It("should emit its whole bracket across the select", func() {
			for _, profile := range []string{"ivb", "bdw", "skl", "tgl", "dg2"} {
				build(profile)

				for _, m := range []device.Mode{
					device.ModeGPGPU, device.Mode3D,
					device.ModeGPGPU, device.ModeMedia, device.Mode3D,
				} {
					from := cmd.Mode()
					n := len(batch.Packets())

					Expect(cmd.SwitchPipelineMode(m)).To(Succeed())

					bracket := d.Table.Bracket(from, m)
					want := bracket
					if d.Table.Quirks.HDCFlushAsDataCacheFlush &&
						want.Has(pipebits.HDCPipelineFlush) {
						want = want.Clear(pipebits.HDCPipelineFlush) |
							pipebits.DataCacheFlush
					}

					Expect(emittedBits(since(n)).Has(want)).To(BeTrue(),
						"%s: %s -> %s emitted %s", profile, from, m,
						emittedBits(since(n)))
					Expect(cmd.PendingBits()&bracket).To(BeZero(),
						"%s: %s -> %s left %s", profile, from, m,
						cmd.PendingBits())
				}
			}
		})

		It("should emit what compute mode held back after leaving it", func() {
			build("dg2")
			Expect(cmd.SwitchPipelineMode(device.ModeGPGPU)).To(Succeed())
			n := len(batch.Packets())

			Expect(cmd.SwitchPipelineMode(device.Mode3D)).To(Succeed())

			packets := since(n)
			selectAt := -1
			for i, p := range packets {
				if p.Kind == emit.KindModeSelect {
					selectAt = i
				}
			}
			Expect(selectAt).To(BeNumerically(">", 0))

			held := pipebits.VFCacheInvalidate |
				pipebits.RenderTargetCacheFlush |
				pipebits.DepthCacheFlush
			Expect(emittedBits(packets[:selectAt]) & held).To(BeZero())
			Expect(emittedBits(packets[selectAt:]).Has(held)).To(BeTrue())
			Expect(cmd.PendingBits()).To(Equal(pipebits.None))
		})

		It("should apply deferred bits when entering 3D", func() {
			build("dg2")
			Expect(cmd.SwitchPipelineMode(device.ModeGPGPU)).To(Succeed())

			cmd.AddPendingBits(pipebits.VFCacheInvalidate, "vertex buffer")
			Expect(cmd.ApplyPendingFlushes()).To(Succeed())
			Expect(cmd.PendingBits()).To(Equal(pipebits.VFCacheInvalidate))

			n := len(batch.Packets())
			Expect(cmd.SwitchPipelineMode(device.Mode3D)).To(Succeed())

			packets := since(n)
			selectAt := -1
			for i, p := range packets {
				if p.Kind == emit.KindModeSelect {
					selectAt = i
				}
			}

			Expect(selectAt).To(BeNumerically(">=", 0))
			Expect(emittedBits(packets[selectAt:]).
				Has(pipebits.VFCacheInvalidate)).To(BeTrue())
			Expect(cmd.PendingBits()).To(Equal(pipebits.None))
		})
	})

	Context("state base address", func() {
		It("should always invalidate after re-emission", func() {
			n := len(batch.Packets())

			Expect(cmd.ReemitStateBaseAddress()).To(Succeed())
			Expect(cmd.ReemitStateBaseAddress()).To(Succeed())

			packets := since(n)
			sbaAt := []int{}
			for i, p := range packets {
				if p.Kind == emit.KindStateBaseAddress {
					sbaAt = append(sbaAt, i)
				}
			}
			Expect(sbaAt).To(HaveLen(2))

			required := pipebits.TextureCacheInvalidate |
				pipebits.ConstantCacheInvalidate |
				pipebits.StateCacheInvalidate
			ends := []int{sbaAt[1], len(packets)}

			for i, at := range sbaAt {
				Expect(packets[at-1].Kind).To(Equal(emit.KindBarrier))
				Expect(packets[at-1].Barrier.Flush.Has(
					pipebits.RenderTargetCacheFlush)).To(BeTrue())

				after := emittedBits(packets[at+1 : ends[i]])
				Expect(after.Has(required)).To(BeTrue())
			}

			Expect(cmd.PendingBits()).To(Equal(pipebits.None))
		})

		It("should invalidate the instruction cache where required", func() {
			build("dg2")
			n := len(batch.Packets())

			Expect(cmd.ReemitStateBaseAddress()).To(Succeed())

			Expect(emittedBits(since(n)).
				Has(pipebits.InstructionCacheInvalidate)).To(BeTrue())
		})

		It("should hold back flushes the mode cannot emit", func() {
			build("dg2")
			Expect(cmd.SwitchPipelineMode(device.ModeGPGPU)).To(Succeed())
			n := len(batch.Packets())

			Expect(cmd.ReemitStateBaseAddress()).To(Succeed())

			packets := since(n)
			Expect(kindsOf(packets)).ToNot(ContainElement(emit.KindModeSelect))
			Expect(emittedBits(packets).Has(pipebits.RenderTargetCacheFlush)).
				To(BeFalse())
			Expect(emittedBits(packets).Has(pipebits.StallAtScoreboard)).
				To(BeFalse())

			sbaAt := -1
			for i, p := range packets {
				if p.Kind == emit.KindStateBaseAddress {
					sbaAt = i
				}
			}
			Expect(sbaAt).To(BeNumerically(">", 0))
			Expect(packets[sbaAt-1].Barrier.Flush.Has(
				pipebits.DataCacheFlush)).To(BeTrue())
			Expect(emittedBits(packets[sbaAt+1:]).Has(
				pipebits.TextureCacheInvalidate |
					pipebits.ConstantCacheInvalidate |
					pipebits.StateCacheInvalidate |
					pipebits.InstructionCacheInvalidate)).To(BeTrue())
			Expect(cmd.PendingBits()).
				To(Equal(pipebits.RenderTargetCacheFlush))

			n = len(batch.Packets())
			Expect(cmd.End()).To(Succeed())

			Expect(emittedBits(since(n)).Has(pipebits.RenderTargetCacheFlush)).
				To(BeTrue())
			Expect(cmd.PendingBits()).To(Equal(pipebits.None))
		})

		It("should re-emit when a pool moved", func() {
			Expect(cmd.PrepareDraw()).To(Succeed())
			n := len(batch.Packets())

			Expect(cmd.PrepareDraw()).To(Succeed())
			Expect(kindsOf(since(n))).
				ToNot(ContainElement(emit.KindStateBaseAddress))

			pool := d.Pools.Surface.(*device.BlockPool)
			_, size := pool.BaseAddress()
			Expect(pool.Grow(size * 2)).To(BeTrue())

			Expect(cmd.PrepareDraw()).To(Succeed())
			Expect(kindsOf(since(n))).
				To(ContainElement(emit.KindStateBaseAddress))
		})
	})

	Context("L3", func() {
		It("should drain around reconfiguration", func() {
			n := len(batch.Packets())
			cfg, _ := d.L3("compute")

			Expect(cmd.ConfigureL3(*cfg)).To(Succeed())

			packets := since(n)
			Expect(kindsOf(packets)).To(Equal([]emit.Kind{
				emit.KindBarrier,
				emit.KindBarrier,
				emit.KindBarrier,
				emit.KindL3Config,
			}))
			Expect(packets[0].Barrier.Flush).To(Equal(pipebits.DataCacheFlush))
			Expect(packets[1].Barrier.Invalidate.Has(
				pipebits.TextureCacheInvalidate)).To(BeTrue())
			Expect(packets[2].Barrier.Flush).To(Equal(pipebits.DataCacheFlush))
			Expect(cmd.L3Config().Equal(*cfg)).To(BeTrue())
		})

		It("should skip unchanged configurations", func() {
			cfg, _ := d.L3("compute")
			Expect(cmd.ConfigureL3(*cfg)).To(Succeed())
			n := len(batch.Packets())

			renamed := *cfg
			renamed.Name = "same"
			Expect(cmd.ConfigureL3(renamed)).To(Succeed())

			Expect(batch.Packets()).To(HaveLen(n))
		})

		It("should program the default configuration on first use", func() {
			Expect(cmd.PrepareDispatch()).To(Succeed())

			Expect(cmd.L3Config().Equal(*d.DefaultL3)).To(BeTrue())
			Expect(cmd.Mode()).To(Equal(device.ModeGPGPU))
		})
	})

	Context("vertex fetch cache", func() {
		It("should invalidate when bindings span more than 4 GiB", func() {
			cmd.SetVertexBinding(0, 0x1000, 0x1000)
			cmd.MarkVertexBuffersUsed(1, false)
			Expect(cmd.PendingBits()).To(Equal(pipebits.None))

			cmd.SetVertexBinding(0, 5<<30, 0x1000)
			cmd.MarkVertexBuffersUsed(1, false)
			Expect(cmd.PendingBits()).
				To(Equal(pipebits.CSStall | pipebits.VFCacheInvalidate))

			Expect(cmd.ApplyPendingFlushes()).To(Succeed())

			cmd.MarkVertexBuffersUsed(1, false)
			Expect(cmd.PendingBits()).To(Equal(pipebits.None))
		})

		It("should track the index buffer", func() {
			cmd.SetVertexBinding(IndexBufferSlot, 0, 0x100)
			cmd.MarkVertexBuffersUsed(0, true)
			cmd.SetVertexBinding(IndexBufferSlot, 8<<30, 0x100)
			cmd.MarkVertexBuffersUsed(0, false)
			Expect(cmd.PendingBits()).To(Equal(pipebits.None))

			cmd.MarkVertexBuffersUsed(0, true)
			Expect(cmd.PendingBits().Has(pipebits.VFCacheInvalidate)).
				To(BeTrue())
		})

		It("should keep tracking across secondaries", func() {
			second := MakeBuilder().
				WithDevice(d).
				WithLevel(LevelSecondary).
				Build("Secondary")
			Expect(second.Begin()).To(Succeed())
			Expect(second.End()).To(Succeed())

			cmd.SetVertexBinding(0, 0x1000, 0x1000)
			cmd.MarkVertexBuffersUsed(1, false)
			Expect(cmd.ExecuteSecondary(second)).To(Succeed())
			Expect(cmd.PendingBits()).To(Equal(pipebits.None))

			cmd.SetVertexBinding(0, 5<<30, 0x1000)
			cmd.MarkVertexBuffersUsed(1, false)
			Expect(cmd.PendingBits()).
				To(Equal(pipebits.CSStall | pipebits.VFCacheInvalidate))
		})

		It("should panic on a bad binding index", func() {
			Expect(func() { cmd.SetVertexBinding(maxVertexBuffers, 0, 0x100) }).
				To(Panic())
			Expect(func() { cmd.SetVertexBinding(IndexBufferSlot-1, 0, 0x100) }).
				To(Panic())
		})

		It("should not track on generations without the workaround", func() {
			build("tgl")

			cmd.SetVertexBinding(0, 0, 0x100)
			cmd.MarkVertexBuffersUsed(1, false)
			cmd.SetVertexBinding(0, 8<<30, 0x100)
			cmd.MarkVertexBuffersUsed(1, false)

			Expect(cmd.PendingBits()).To(Equal(pipebits.None))
		})
	})

	Context("depth state", func() {
		It("should stall around a depth flush", func() {
			build("ivb")
			n := len(batch.Packets())

			Expect(cmd.EmitDepthStateFlush()).To(Succeed())

			barriers := barriersOf(since(n))
			Expect(barriers).To(HaveLen(3))
			Expect(barriers[0].Stall).To(Equal(pipebits.DepthStall))
			Expect(barriers[1].Flush).To(Equal(pipebits.DepthCacheFlush))
			Expect(barriers[2].Stall).To(Equal(pipebits.DepthStall))
		})

		It("should emit nothing on newer generations", func() {
			n := len(batch.Packets())

			Expect(cmd.EmitDepthStateFlush()).To(Succeed())

			Expect(batch.Packets()).To(HaveLen(n))
		})
	})
})
