package node

import (
	"fmt"
	"strings"

	"github.com/zacpullen/arena-api/pkg/errkind"
)

// InterfaceType is the declared type tag of a node. Values match the
// GenApi interface type numbering.
type InterfaceType uint8

const (
	InterfaceValue       InterfaceType = 0
	InterfaceBase        InterfaceType = 1
	InterfaceInteger     InterfaceType = 2
	InterfaceBoolean     InterfaceType = 3
	InterfaceCommand     InterfaceType = 4
	InterfaceFloat       InterfaceType = 5
	InterfaceString      InterfaceType = 6
	InterfaceRegister    InterfaceType = 7
	InterfaceCategory    InterfaceType = 8
	InterfaceEnumeration InterfaceType = 9
	InterfaceEnumEntry   InterfaceType = 10
	InterfacePort        InterfaceType = 11
)

var interfaceTypeNames = map[InterfaceType]string{
	InterfaceValue:       "Value",
	InterfaceBase:        "Base",
	InterfaceInteger:     "Integer",
	InterfaceBoolean:     "Boolean",
	InterfaceCommand:     "Command",
	InterfaceFloat:       "Float",
	InterfaceString:      "String",
	InterfaceRegister:    "Register",
	InterfaceCategory:    "Category",
	InterfaceEnumeration: "Enumeration",
	InterfaceEnumEntry:   "EnumEntry",
	InterfacePort:        "Port",
}

func (t InterfaceType) String() string { return nameOf(interfaceTypeNames, t) }

// ParseInterfaceType accepts both "Integer" and the GenApi style "IInteger".
func ParseInterfaceType(s string) (InterfaceType, error) {
	if len(s) > 1 && s[0] == 'I' && s[1] >= 'A' && s[1] <= 'Z' {
		s = s[1:]
	}
	return parseName("interface type", interfaceTypeNames, s)
}

// AccessMode is the access a node currently grants.
type AccessMode uint8

const (
	AccessNI AccessMode = iota // not implemented
	AccessNA                   // not available
	AccessWO
	AccessRO
	AccessRW
	AccessUndefined
)

var accessModeNames = map[AccessMode]string{
	AccessNI:        "NI",
	AccessNA:        "NA",
	AccessWO:        "WO",
	AccessRO:        "RO",
	AccessRW:        "RW",
	AccessUndefined: "Undefined",
}

func (a AccessMode) String() string { return nameOf(accessModeNames, a) }

// Readable reports whether the mode allows reading.
func (a AccessMode) Readable() bool { return a == AccessRO || a == AccessRW }

// Writable reports whether the mode allows writing.
func (a AccessMode) Writable() bool { return a == AccessWO || a == AccessRW }

// ParseAccessMode parses NI, NA, WO, RO, RW or Undefined.
func ParseAccessMode(s string) (AccessMode, error) {
	return parseName("access mode", accessModeNames, s)
}

// combineAccess narrows a by the imposed mode b. Imposing never grants
// access the device does not report.
func combineAccess(a, b AccessMode) AccessMode {
	if b == AccessUndefined {
		return a
	}
	if a == AccessNI || b == AccessNI {
		return AccessNI
	}
	if a == AccessNA || b == AccessNA {
		return AccessNA
	}
	r := a.Readable() && b.Readable()
	w := a.Writable() && b.Writable()
	switch {
	case r && w:
		return AccessRW
	case r:
		return AccessRO
	case w:
		return AccessWO
	default:
		return AccessNA
	}
}

// Visibility is the user tier a node is meant for.
type Visibility uint8

const (
	VisibilityBeginner  Visibility = 0
	VisibilityExpert    Visibility = 1
	VisibilityGuru      Visibility = 2
	VisibilityInvisible Visibility = 3
	VisibilityUndefined Visibility = 99
)

var visibilityNames = map[Visibility]string{
	VisibilityBeginner:  "Beginner",
	VisibilityExpert:    "Expert",
	VisibilityGuru:      "Guru",
	VisibilityInvisible: "Invisible",
	VisibilityUndefined: "Undefined",
}

func (v Visibility) String() string { return nameOf(visibilityNames, v) }

// ParseVisibility parses a visibility tier name.
func ParseVisibility(s string) (Visibility, error) {
	return parseName("visibility", visibilityNames, s)
}

// CachingMode describes how reads of a node are cached.
type CachingMode uint8

const (
	CachingNoCache CachingMode = iota
	CachingWriteThrough
	CachingWriteAround
	CachingUndefined
)

var cachingModeNames = map[CachingMode]string{
	CachingNoCache:      "NoCache",
	CachingWriteThrough: "WriteThrough",
	CachingWriteAround:  "WriteAround",
	CachingUndefined:    "Undefined",
}

func (c CachingMode) String() string { return nameOf(cachingModeNames, c) }

// ParseCachingMode parses a caching mode name.
func ParseCachingMode(s string) (CachingMode, error) {
	return parseName("caching mode", cachingModeNames, s)
}

// Namespace tells whether a node is defined by the SFNC or by the vendor.
type Namespace uint8

const (
	NamespaceCustom Namespace = iota
	NamespaceStandard
	NamespaceUndefined
)

var namespaceNames = map[Namespace]string{
	NamespaceCustom:    "Custom",
	NamespaceStandard:  "Standard",
	NamespaceUndefined: "Undefined",
}

func (n Namespace) String() string { return nameOf(namespaceNames, n) }

// ParseNamespace parses a namespace name.
func ParseNamespace(s string) (Namespace, error) {
	return parseName("namespace", namespaceNames, s)
}

// IncMode describes how the valid values of a numeric node are constrained.
type IncMode uint8

const (
	IncModeNone IncMode = iota
	IncModeFixed
	IncModeList
)

var incModeNames = map[IncMode]string{
	IncModeNone:  "None",
	IncModeFixed: "Fixed",
	IncModeList:  "List",
}

func (m IncMode) String() string { return nameOf(incModeNames, m) }

// ParseIncMode parses an increment mode name.
func ParseIncMode(s string) (IncMode, error) {
	return parseName("increment mode", incModeNames, s)
}

// Representation is the recommended presentation of a numeric value.
type Representation uint8

const (
	RepresentationLinear Representation = iota
	RepresentationLogarithmic
	RepresentationBoolean
	RepresentationPureNumber
	RepresentationHexNumber
	RepresentationIPv4Address
	RepresentationMACAddress
	RepresentationUndefined
)

var representationNames = map[Representation]string{
	RepresentationLinear:      "Linear",
	RepresentationLogarithmic: "Logarithmic",
	RepresentationBoolean:     "Boolean",
	RepresentationPureNumber:  "PureNumber",
	RepresentationHexNumber:   "HexNumber",
	RepresentationIPv4Address: "IPV4Address",
	RepresentationMACAddress:  "MACAddress",
	RepresentationUndefined:   "Undefined",
}

func (r Representation) String() string { return nameOf(representationNames, r) }

// ParseRepresentation parses a representation name.
func ParseRepresentation(s string) (Representation, error) {
	return parseName("representation", representationNames, s)
}

// DisplayNotation applies to Float nodes.
type DisplayNotation uint8

const (
	NotationAutomatic DisplayNotation = iota
	NotationFixed
	NotationScientific
	NotationUndefined
)

var notationNames = map[DisplayNotation]string{
	NotationAutomatic:  "Automatic",
	NotationFixed:      "Fixed",
	NotationScientific: "Scientific",
	NotationUndefined:  "Undefined",
}

func (d DisplayNotation) String() string { return nameOf(notationNames, d) }

// ParseDisplayNotation parses a display notation name.
func ParseDisplayNotation(s string) (DisplayNotation, error) {
	return parseName("display notation", notationNames, s)
}

// Scope identifies which node map a node lives in.
type Scope uint8

const (
	ScopeDevice Scope = iota
	ScopeTLDevice
	ScopeTLStream
	ScopeTLInterface
	ScopeTLSystem
	ScopeChunk
)

var scopeNames = map[Scope]string{
	ScopeDevice:      "Device",
	ScopeTLDevice:    "TLDevice",
	ScopeTLStream:    "TLStream",
	ScopeTLInterface: "TLInterface",
	ScopeTLSystem:    "TLSystem",
	ScopeChunk:       "Chunk",
}

func (s Scope) String() string { return nameOf(scopeNames, s) }

// TransportLayer reports whether the scope belongs to the transport layer
// rather than the remote device.
func (s Scope) TransportLayer() bool {
	switch s {
	case ScopeTLDevice, ScopeTLStream, ScopeTLInterface, ScopeTLSystem:
		return true
	}
	return false
}

// ParseScope parses a scope name.
func ParseScope(s string) (Scope, error) {
	return parseName("scope", scopeNames, s)
}

func nameOf[T ~uint8](names map[T]string, v T) string {
	if s, ok := names[v]; ok {
		return s
	}
	return fmt.Sprintf("Unknown(%d)", uint8(v))
}

func parseName[T ~uint8](kind string, names map[T]string, s string) (T, error) {
	for v, name := range names {
		if strings.EqualFold(name, s) {
			return v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%w: unknown %s %q", errkind.ErrInvalidValue, kind, s)
}
