// Package object reads and writes object headers, the message lists that
// describe every group and dataset in a file.
package object

import (
	"errors"

	"github.com/richielo/basicFusion/internal/message"
)

var (
	ErrInvalidHeader    = errors.New("invalid object header")
	ErrChecksumMismatch = errors.New("object header checksum mismatch")
)

type Header struct {
	Version  uint8
	Address  uint64
	Flags    uint8
	RefCount uint32
	Messages []message.Message

	// ModTime is in seconds since the epoch, zero when not recorded.
	ModTime uint32

	// Skipped holds one error per message that could not be decoded.
	// Readers carry on without those messages.
	Skipped []error
}

// GetMessage returns the first message of type typ, or nil.
func (h *Header) GetMessage(typ message.Type) message.Message {
	for _, m := range h.Messages {
		if m.Type() == typ {
			return m
		}
	}
	return nil
}

func (h *Header) GetMessages(typ message.Type) []message.Message {
	var out []message.Message
	for _, m := range h.Messages {
		if m.Type() == typ {
			out = append(out, m)
		}
	}
	return out
}

func find[T message.Message](h *Header, typ message.Type) T {
	m, _ := h.GetMessage(typ).(T)
	return m
}

func (h *Header) Dataspace() *message.Dataspace {
	return find[*message.Dataspace](h, message.TypeDataspace)
}

func (h *Header) Datatype() *message.Datatype {
	return find[*message.Datatype](h, message.TypeDatatype)
}

func (h *Header) DataLayout() *message.DataLayout {
	return find[*message.DataLayout](h, message.TypeDataLayout)
}

func (h *Header) FilterPipeline() *message.FilterPipeline {
	return find[*message.FilterPipeline](h, message.TypeFilterPipeline)
}

// FillValue prefers the current fill value message over the old one.
func (h *Header) FillValue() *message.FillValue {
	var old *message.FillValue
	for _, m := range h.GetMessages(message.TypeFillValue) {
		fv := m.(*message.FillValue)
		if fv.Version > 0 {
			return fv
		}
		old = fv
	}
	return old
}
