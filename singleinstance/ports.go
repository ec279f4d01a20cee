package singleinstance

import (
	"log"

	"github.com/caarlos0/env/v6"
)

const (
	defaultPortStart = 49560
	defaultPortEnd   = 49570
)

type portRange struct {
	Start int `env:"CLIP_TRANSLATE_PORT_START" envDefault:"49560"`
	End   int `env:"CLIP_TRANSLATE_PORT_END" envDefault:"49570"`
}

// getPortRange returns the inclusive loopback range, clamped to
// [1024, 65535].
func getPortRange() (int, int) {
	r := portRange{Start: defaultPortStart, End: defaultPortEnd}
	if err := env.Parse(&r); err != nil {
		log.Printf("singleinstance: bad port range, using defaults: %v", err)
		r = portRange{Start: defaultPortStart, End: defaultPortEnd}
	}
	if r.Start < 1024 {
		r.Start = 1024
	}
	if r.End > 65535 {
		r.End = 65535
	}
	if r.End < r.Start {
		r.Start, r.End = r.End, r.Start
	}
	return r.Start, r.End
}
