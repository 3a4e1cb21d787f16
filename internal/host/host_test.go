package host

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/edgeaihub/edgeplug/pkg/plugin"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// echoPlugin returns its text input and reports overlapping Process calls.
type echoPlugin struct {
	plugin.Base
	inFlight   atomic.Int32
	overlapped atomic.Bool
	calls      atomic.Int32
	delay      time.Duration
	released   bool
}

func newEchoPlugin() *echoPlugin {
	return &echoPlugin{
		Base: plugin.NewBase(plugin.Descriptor{
			ID:                   "echo",
			Version:              "0.2.0",
			SupportedInputTypes:  []plugin.DataType{plugin.DataTypeText},
			SupportedOutputTypes: []plugin.DataType{plugin.DataTypeText},
		}),
	}
}

func (p *echoPlugin) Initialize() bool { return true }

func (p *echoPlugin) Process(in *plugin.Input) plugin.Output {
	if !p.ValidateInput(in) {
		return plugin.UnsupportedInput(p.Descriptor(), in)
	}
	if p.inFlight.Add(1) > 1 {
		p.overlapped.Store(true)
	}
	defer p.inFlight.Add(-1)

	p.calls.Add(1)
	time.Sleep(p.delay)

	if in.Data == "panic" {
		panic("echo exploded")
	}
	return plugin.Succeed(in.Data, map[string]any{"echoed": true})
}

func (p *echoPlugin) Release() error {
	p.released = true
	return nil
}
