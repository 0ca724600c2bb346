package stages

// Definition describes one named stage of the remote pipeline.
type Definition struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

const (
	KeyIngesting    = "ingesting"
	KeySeparating   = "separating"
	KeyTranscribing = "transcribing"
	KeyTranslating  = "translating"
	KeySynthesizing = "synthesizing"
	KeyMixing       = "mixing"
)

// Catalog is an ordered, immutable list of stage definitions.
type Catalog []Definition

var defaultCatalog = Catalog{
	{Key: KeyIngesting, Label: "Ingesting video", Icon: "📥"},
	{Key: KeySeparating, Label: "Separating vocals", Icon: "🎚"},
	{Key: KeyTranscribing, Label: "Transcribing speech", Icon: "📝"},
	{Key: KeyTranslating, Label: "Translating text", Icon: "🌐"},
	{Key: KeySynthesizing, Label: "Synthesizing voice", Icon: "🗣"},
	{Key: KeyMixing, Label: "Mixing audio & video", Icon: "🎬"},
}

// Default returns a copy of the dubbing pipeline's stage catalog.
func Default() Catalog {
	out := make(Catalog, len(defaultCatalog))
	copy(out, defaultCatalog)
	return out
}

// Index returns the position of key in the catalog, or -1 when the key is
// not a known stage.
func (c Catalog) Index(key string) int {
	if key == "" {
		return -1
	}
	for i, def := range c {
		if def.Key == key {
			return i
		}
	}
	return -1
}

// Lookup returns the definition registered for key.
func (c Catalog) Lookup(key string) (Definition, bool) {
	if idx := c.Index(key); idx >= 0 {
		return c[idx], true
	}
	return Definition{}, false
}

// Keys lists the stage keys in pipeline order.
func (c Catalog) Keys() []string {
	keys := make([]string, len(c))
	for i, def := range c {
		keys[i] = def.Key
	}
	return keys
}
