package hooking

import (
	"log"

	"github.com/sarchlab/pipesync/emit"
)

// LogHookBase provides the common logic for all hooks that write into a
// logger.
type LogHookBase struct {
	*log.Logger
}

func domainName(ctx HookCtx) string {
	if n, ok := ctx.Domain.(Named); ok {
		return n.Name()
	}

	return "?"
}

// PipeControlLogger prints pending bit changes and emitted barriers in the
// "pc:" debug format.
type PipeControlLogger struct {
	LogHookBase
}

// NewPipeControlLogger returns a new PipeControlLogger which will write into
// the logger.
func NewPipeControlLogger(logger *log.Logger) *PipeControlLogger {
	h := new(PipeControlLogger)
	h.Logger = logger

	return h
}

// Func writes the pipe control information into the logger.
func (h *PipeControlLogger) Func(ctx HookCtx) {
	switch item := ctx.Item.(type) {
	case BitsAdded:
		h.Logger.Printf("%s pc: add %s reason: %s",
			domainName(ctx), item.Bits, item.Reason)
	case BarrierEmitted:
		h.Logger.Printf("%s pc: emit %s (%s) reason: %s",
			domainName(ctx), item.Barrier, item.Mode, item.Reason)
	case ModeSelected:
		h.Logger.Printf("%s pc: select %s -> %s",
			domainName(ctx), item.From, item.To)
	case emit.StateBaseAddress:
		h.Logger.Printf("%s pc: sba %s", domainName(ctx), item)
	}
}

// L3Logger prints L3 configuration transitions.
type L3Logger struct {
	LogHookBase
}

// NewL3Logger returns a new L3Logger which will write into the logger.
func NewL3Logger(logger *log.Logger) *L3Logger {
	h := new(L3Logger)
	h.Logger = logger

	return h
}

// Func writes the L3 transition into the logger.
func (h *L3Logger) Func(ctx HookCtx) {
	if ctx.Pos != HookPosL3Configured {
		return
	}

	item, ok := ctx.Item.(L3Configured)
	if !ok {
		return
	}

	from := "unknown"
	if item.From != nil {
		from = item.From.String()
	}

	h.Logger.Printf("%s l3: %s -> %s", domainName(ctx), from, item.To)
}
