package acc

import "fmt"

// Handle is an opaque reference to a stream or an event. The kind is
// encoded in the top byte and the remaining bits hold a sequence number
// that is never reused, so a stale handle cannot alias a newer object.
// The zero Handle refers to nothing; as a stream argument of
// DispatchRegion it selects the default device.
type Handle uint64

// Kind identifies what a Handle refers to.
type Kind uint8

const (
	// KindInvalid is the kind of the zero Handle.
	KindInvalid Kind = iota

	// KindStream marks stream handles.
	KindStream

	// KindEvent marks event handles.
	KindEvent
)

const (
	kindShift = 56
	seqMask   = 1<<kindShift - 1
)

func makeHandle(k Kind, seq uint64) Handle {
	return Handle(uint64(k)<<kindShift | seq&seqMask)
}

// Kind returns the kind tag of h.
func (h Handle) Kind() Kind { return Kind(h >> kindShift) }

// String formats the handle for logs.
func (h Handle) String() string {
	switch h.Kind() {
	case KindStream:
		return fmt.Sprintf("stream#%d", uint64(h)&seqMask)
	case KindEvent:
		return fmt.Sprintf("event#%d", uint64(h)&seqMask)
	default:
		return fmt.Sprintf("handle(%#x)", uint64(h))
	}
}
