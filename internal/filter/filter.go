// Package filter undoes the HDF5 filter pipeline on chunk data: deflate,
// byte shuffle and the Fletcher-32 checksum.
package filter

import (
	"fmt"

	"github.com/richielo/basicFusion/internal/message"
)

// Filter reverses one pipeline stage.
type Filter interface {
	ID() uint16
	Decode(in []byte) ([]byte, error)
}

var constructors = map[uint16]func(clientData []uint32) Filter{
	message.FilterDeflate:    func([]uint32) Filter { return deflate{} },
	message.FilterShuffle:    newShuffle,
	message.FilterFletcher32: func([]uint32) Filter { return fletcher32{} },
}

var knownNames = map[uint16]string{
	message.FilterSZIP:        "szip",
	message.FilterNBit:        "n-bit",
	message.FilterScaleOffset: "scale-offset",
}

// New builds the decoder for info. Optional filters with no decoder return
// nil, nil and are skipped.
func New(info message.FilterInfo) (Filter, error) {
	if mk, ok := constructors[info.ID]; ok {
		return mk(info.ClientData), nil
	}
	if info.IsOptional() {
		return nil, nil
	}
	if name, ok := knownNames[info.ID]; ok {
		return nil, fmt.Errorf("%s filter (id %d) is not supported", name, info.ID)
	}
	return nil, fmt.Errorf("unknown filter id %d", info.ID)
}

// Pipeline decodes data written through a filter pipeline message.
type Pipeline struct {
	stages []Filter
	// slot keeps each stage's position in the message so filter masks
	// still line up after optional filters are dropped.
	slot []int
}

func NewPipeline(fp *message.FilterPipeline) (*Pipeline, error) {
	p := &Pipeline{}
	if fp == nil {
		return p, nil
	}
	for i, info := range fp.Filters {
		f, err := New(info)
		if err != nil {
			return nil, err
		}
		if f == nil {
			continue
		}
		p.stages = append(p.stages, f)
		p.slot = append(p.slot, i)
	}
	return p, nil
}

// Decode runs the stages last to first. Bit i of mask skips the i-th filter
// of the message.
func (p *Pipeline) Decode(in []byte, mask uint32) ([]byte, error) {
	out := in
	for i := len(p.stages) - 1; i >= 0; i-- {
		if mask&(1<<uint(p.slot[i])) != 0 {
			continue
		}
		var err error
		if out, err = p.stages[i].Decode(out); err != nil {
			return nil, fmt.Errorf("filter %d: %w", p.stages[i].ID(), err)
		}
	}
	return out, nil
}

func (p *Pipeline) Empty() bool { return len(p.stages) == 0 }

func (p *Pipeline) Len() int { return len(p.stages) }
