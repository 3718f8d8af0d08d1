package dbus

// Format selects which serialization dialect an alignment or fixed-size
// query is computed for.
type Format int

const (
	// FormatDBus is the classic D-Bus wire format.
	FormatDBus Format = iota
	// FormatGVariant is the GVariant dialect, with its own alignment and
	// framing rules. Maybe only appears under this format; see
	// sig_gvariant.go.
	FormatGVariant
)

// Alignment returns the byte boundary s must start on when serialized
// under format. The table is fixed by the wire protocol, not by any
// runtime state.
func (s Signature) Alignment(format Format) int {
	if format == FormatGVariant {
		return s.alignmentGVariant()
	}
	return s.alignmentDBus()
}

func (s Signature) alignmentDBus() int {
	switch s.kind {
	case KindU8, KindSignature, KindVariant:
		return 1
	case KindI16, KindU16:
		return 2
	case KindI32, KindU32, KindBool, KindStr, KindObjectPath, KindArray, KindDict, KindFd:
		return 4
	case KindI64, KindU64, KindF64, KindUnit, KindStructure:
		return 8
	case KindMaybe:
		// Maybe does not exist under the classic format. It reaches here
		// when built with the Maybe constructor, or when parsed from 'm'
		// in a build with the gvariant tag.
		panic("dbus: Maybe has no DBus alignment")
	default:
		return alignmentDBusExtra(s)
	}
}

func (s Signature) alignmentGVariant() int {
	switch s.kind {
	case KindU8, KindSignature:
		return 1
	case KindVariant:
		return 8
	case KindI16, KindU16:
		return 2
	case KindI32, KindU32, KindBool:
		return 4
	case KindStr, KindObjectPath:
		return 1
	case KindArray:
		return s.child.alignmentGVariant()
	case KindDict:
		return s.value.alignmentGVariant()
	case KindI64, KindU64, KindF64, KindUnit:
		return 8
	case KindStructure:
		max := 1
		for _, f := range s.fields {
			if a := f.alignmentGVariant(); a > max {
				max = a
			}
		}
		return max
	case KindFd:
		return 4
	default:
		return alignmentGVariantExtra(s)
	}
}

// alignmentDBusExtra/alignmentGVariantExtra handle kinds the switches above
// don't list. sig_gvariant.go overrides alignmentGVariantExtra for Maybe;
// no file overrides alignmentDBusExtra.
var alignmentDBusExtra = func(s Signature) int {
	panic("dbus: no DBus alignment for kind")
}

var alignmentGVariantExtra = func(s Signature) int {
	panic("dbus: no GVariant alignment for kind")
}

// IsFixedSized reports whether s has a statically known GVariant encoded
// size: all basic scalars and Fd are fixed; Str, Signature, ObjectPath,
// Variant, Array, Dict, Maybe are not; a Structure is fixed iff every
// field is.
func (s Signature) IsFixedSized() bool {
	switch s.kind {
	case KindStr, KindSignature, KindObjectPath, KindVariant, KindArray, KindDict, KindMaybe:
		return false
	case KindStructure:
		for _, f := range s.fields {
			if !f.IsFixedSized() {
				return false
			}
		}
		return true
	default:
		return true
	}
}
