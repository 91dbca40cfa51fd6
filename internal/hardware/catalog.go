// Package hardware holds the two static tables the wiring resolver works
// against: the component capability catalog and the board pin map.
//
// Both tables are read-only after load and safe for concurrent use.
package hardware

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// --- Interface enum ---

// Interface is the electrical interface a component talks over.
type Interface string

const (
	InterfaceI2C     Interface = "I2C"
	InterfaceSPI     Interface = "SPI"
	InterfaceOneWire Interface = "OneWire"
	InterfaceAnalog  Interface = "Analog"
	InterfaceDigital Interface = "Digital"
	InterfacePWM     Interface = "PWM"
)

var validInterfaces = map[Interface]bool{
	InterfaceI2C:     true,
	InterfaceSPI:     true,
	InterfaceOneWire: true,
	InterfaceAnalog:  true,
	InterfaceDigital: true,
	InterfacePWM:     true,
}

// ValidateInterface returns an error if the interface is not recognized.
func ValidateInterface(i Interface) error {
	if !validInterfaces[i] {
		return fmt.Errorf("invalid interface %q: must be one of: I2C, SPI, OneWire, Analog, Digital, PWM", i)
	}
	return nil
}

// --- Category enum ---

// Category groups components for presentation.
type Category string

const (
	CategorySensor         Category = "sensor"
	CategoryDisplay        Category = "display"
	CategoryActuator       Category = "actuator"
	CategoryBoardEssential Category = "board-essential"
)

// CategoryOrder is the fixed presentation order of categories.
var CategoryOrder = []Category{
	CategorySensor,
	CategoryDisplay,
	CategoryActuator,
	CategoryBoardEssential,
}

func validCategory(c Category) bool {
	for _, known := range CategoryOrder {
		if c == known {
			return true
		}
	}
	return false
}

// --- Component ---

// Component is one catalog entry. PriceEstimate and ShoppingLinks are
// presentation-only; the resolver reads Interface, PinRoles and Supply.
type Component struct {
	ID            string    `yaml:"id" json:"id"`
	Name          string    `yaml:"name" json:"name"`
	Category      Category  `yaml:"category" json:"category"`
	Type          string    `yaml:"type" json:"type,omitempty"`
	Interface     Interface `yaml:"interface" json:"interface"`
	PinRoles      []string  `yaml:"pin_roles" json:"pin_roles"`
	Supply        string    `yaml:"supply" json:"supply"`
	Library       string    `yaml:"library" json:"library,omitempty"`
	Notes         string    `yaml:"notes" json:"notes,omitempty"`
	PriceEstimate string    `yaml:"price_estimate" json:"price_estimate,omitempty"`
	ShoppingLinks []string  `yaml:"shopping_links" json:"shopping_links,omitempty"`
}

// Group is the components of one category, in catalog order.
type Group struct {
	Category   Category    `json:"category"`
	Components []Component `json:"components"`
}

// Catalog is the immutable component table.
type Catalog struct {
	components []Component
	byID       map[string]int
}

type catalogFile struct {
	Components []Component `yaml:"components"`
}

// DefaultCatalog parses the catalog compiled into the binary.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(embeddedCatalog)
}

// LoadCatalog reads a catalog YAML file from disk.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a catalog document.
// Entries keep their file order; ids must be unique.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	c := &Catalog{
		components: make([]Component, 0, len(f.Components)),
		byID:       make(map[string]int, len(f.Components)),
	}
	for i, comp := range f.Components {
		comp.ID = strings.TrimSpace(comp.ID)
		if comp.ID == "" {
			return nil, fmt.Errorf("catalog entry %d: missing id", i)
		}
		if strings.Contains(comp.ID, "#") {
			return nil, fmt.Errorf("catalog entry %d: id %q may not contain '#'", i, comp.ID)
		}
		if _, dup := c.byID[comp.ID]; dup {
			return nil, fmt.Errorf("catalog entry %d: duplicate id %q", i, comp.ID)
		}
		if strings.TrimSpace(comp.Name) == "" {
			return nil, fmt.Errorf("catalog entry %q: missing name", comp.ID)
		}
		if err := ValidateInterface(comp.Interface); err != nil {
			return nil, fmt.Errorf("catalog entry %q: %w", comp.ID, err)
		}
		if !validCategory(comp.Category) {
			return nil, fmt.Errorf("catalog entry %q: invalid category %q", comp.ID, comp.Category)
		}
		if comp.Supply == "" {
			comp.Supply = Rail3V3
		}
		if comp.Supply != Rail3V3 && comp.Supply != Rail5V {
			return nil, fmt.Errorf("catalog entry %q: supply must be %s or %s, got %q", comp.ID, Rail3V3, Rail5V, comp.Supply)
		}
		if comp.PinRoles == nil {
			comp.PinRoles = []string{}
		}
		c.byID[comp.ID] = len(c.components)
		c.components = append(c.components, comp)
	}
	return c, nil
}

// Lookup returns the component with the given id.
func (c *Catalog) Lookup(id string) (Component, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return Component{}, false
	}
	return c.components[idx], true
}

// Len returns the number of components in the catalog.
func (c *Catalog) Len() int { return len(c.components) }

// Components returns all components in catalog order.
func (c *Catalog) Components() []Component {
	out := make([]Component, len(c.components))
	copy(out, c.components)
	return out
}

// Groups returns components grouped by category in CategoryOrder.
// Empty categories are omitted.
func (c *Catalog) Groups() []Group {
	var groups []Group
	for _, cat := range CategoryOrder {
		var members []Component
		for _, comp := range c.components {
			if comp.Category == cat {
				members = append(members, comp)
			}
		}
		if len(members) > 0 {
			groups = append(groups, Group{Category: cat, Components: members})
		}
	}
	return groups
}
