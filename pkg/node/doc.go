// Package node implements the typed feature nodes of a camera node map.
//
// # Arena
//
// All nodes of one node map live in an Arena as records addressed by a
// stable ID. Relationships are ID lists, so a node may have several
// parents and may point back at its selectors without ownership cycles:
//
//	Root (Category)
//	├── ImageFormatControl (Category)
//	│   ├── Width (Integer)        <- selected by nothing
//	│   └── PixelFormat (Enumeration)
//	│       ├── EnumEntry_PixelFormat_Mono8
//	│       └── EnumEntry_PixelFormat_Mono16
//	└── AcquisitionControl (Category)
//	    ├── TriggerSelector (Enumeration) -- selects --> TriggerMode
//	    └── TriggerMode (Enumeration)
//
// # Variants
//
// A Node is an untyped view. Cast turns it into the Feature variant that
// matches its interface type (Integer, Float, Boolean, String, Enumeration,
// EnumEntry, Register, Command, Category). Interface types without a
// variant fail with errkind.ErrTypeMismatch.
//
// # Access
//
// Value accessors check the effective access mode first. The effective
// mode is the device-reported mode narrowed by ImposeAccessMode and by the
// streaming lock on payload-layout nodes.
package node
