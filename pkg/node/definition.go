package node

// Definition describes one node of a node map. Definitions are usually
// loaded from a YAML node description; enumeration entries are declared
// inline and become EnumEntry nodes named EnumEntry_<Enumeration>_<Entry>.
type Definition struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description,omitempty"`
	DisplayName string `yaml:"displayName,omitempty"`
	ToolTip     string `yaml:"toolTip,omitempty"`
	DocuURL     string `yaml:"docuURL,omitempty"`
	Visibility  string `yaml:"visibility,omitempty"`
	Access      string `yaml:"access,omitempty"`
	Caching     string `yaml:"caching,omitempty"`
	Namespace   string `yaml:"namespace,omitempty"`
	Feature     bool   `yaml:"feature,omitempty"`
	Deprecated  bool   `yaml:"deprecated,omitempty"`
	EventID     string `yaml:"eventID,omitempty"`
	Unit        string `yaml:"unit,omitempty"`

	// PollingTime is in milliseconds; zero disables polling.
	PollingTime int64 `yaml:"pollingTime,omitempty"`

	// LockedWhileStreaming marks payload-layout features that become
	// read-only while an acquisition is running.
	LockedWhileStreaming bool `yaml:"lockedWhileStreaming,omitempty"`

	// ChunkID marks a chunk data node; its value is read from the chunk
	// with this ID in a buffer's payload.
	ChunkID uint32 `yaml:"chunkID,omitempty"`

	Value any `yaml:"value,omitempty"`
	Min   any `yaml:"min,omitempty"`
	Max   any `yaml:"max,omitempty"`
	Inc   any `yaml:"inc,omitempty"`

	IncMode          string  `yaml:"incMode,omitempty"`
	ValidValues      []int64 `yaml:"validValues,omitempty"`
	Representation   string  `yaml:"representation,omitempty"`
	DisplayNotation  string  `yaml:"displayNotation,omitempty"`
	DisplayPrecision int64   `yaml:"displayPrecision,omitempty"`
	MaxLength        int64   `yaml:"maxLength,omitempty"`

	Entries []EntryDefinition `yaml:"entries,omitempty"`

	// Register layout.
	Address int64 `yaml:"address,omitempty"`
	Length  int64 `yaml:"length,omitempty"`

	Children    []string `yaml:"children,omitempty"`
	Alias       string   `yaml:"alias,omitempty"`
	CastAlias   string   `yaml:"castAlias,omitempty"`
	Selected    []string `yaml:"selected,omitempty"`
	Invalidates []string `yaml:"invalidates,omitempty"`
}

// EntryDefinition describes one entry of an enumeration.
type EntryDefinition struct {
	Name         string  `yaml:"name"`
	Value        int64   `yaml:"value"`
	NumericValue float64 `yaml:"numericValue,omitempty"`
	Access       string  `yaml:"access,omitempty"`
	Description  string  `yaml:"description,omitempty"`
	DisplayName  string  `yaml:"displayName,omitempty"`
	SelfClearing bool    `yaml:"selfClearing,omitempty"`
}

// EntryNodeName returns the node name of an enumeration entry.
func EntryNodeName(enumeration, entry string) string {
	return "EnumEntry_" + enumeration + "_" + entry
}
