package phrases

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Locale holds the conversational phrase set for one language.
type Locale struct {
	// Farewells are matched against the end of a finalized assistant
	// transcript to detect an explicit goodbye.
	Farewells []string `yaml:"farewells"`
	// Nudge is the instruction used to re-prompt a silent caller.
	Nudge string `yaml:"nudge"`
}

// Table maps locale codes to their phrase sets.
type Table struct {
	Locales map[string]Locale `yaml:"locales"`
}

// LoadDefault parses the embedded phrase table.
func LoadDefault() (Table, error) {
	return parse(defaultYAML)
}

// Load reads a phrase table from path, or the embedded default when path
// is empty.
func Load(path string) (Table, error) {
	if strings.TrimSpace(path) == "" {
		return LoadDefault()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read phrase table: %w", err)
	}
	return parse(raw)
}

func parse(raw []byte) (Table, error) {
	var t Table
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Table{}, fmt.Errorf("parse phrase table: %w", err)
	}
	if err := t.validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

func (t Table) validate() error {
	if len(t.Locales) == 0 {
		return fmt.Errorf("phrase table has no locales")
	}
	for code, loc := range t.Locales {
		if strings.TrimSpace(code) == "" {
			return fmt.Errorf("phrase table has an empty locale code")
		}
		if len(loc.Farewells) == 0 {
			return fmt.Errorf("locale %q has no farewell phrases", code)
		}
		for _, p := range loc.Farewells {
			if strings.TrimSpace(p) == "" {
				return fmt.Errorf("locale %q has an empty farewell phrase", code)
			}
		}
		if strings.TrimSpace(loc.Nudge) == "" {
			return fmt.Errorf("locale %q has no nudge text", code)
		}
	}
	return nil
}

// ForLocale returns the phrase set for code, falling back to the language
// part of a region tag ("en-US" -> "en") and then to "en".
func (t Table) ForLocale(code string) Locale {
	code = strings.ToLower(strings.TrimSpace(code))
	if loc, ok := t.Locales[code]; ok {
		return loc
	}
	if i := strings.IndexByte(code, '-'); i > 0 {
		if loc, ok := t.Locales[code[:i]]; ok {
			return loc
		}
	}
	return t.Locales["en"]
}
