package hardware

import (
	"fmt"
	"sort"
)

// --- Pin capabilities ---

// Capability is one thing a board pin can do.
type Capability string

const (
	CapDigital  Capability = "digital"
	CapAnalogIn Capability = "analog_in"
	CapI2CBus   Capability = "i2c_bus"
	CapSPIBus   Capability = "spi_bus"
	CapOneWire  Capability = "onewire_capable"
	CapPWM      Capability = "pwm"
)

// BoardPin describes one GPIO of the target microcontroller.
type BoardPin struct {
	GPIO         int          `json:"gpio_number"`
	Capabilities []Capability `json:"capabilities"`
	// Shared is true for bus pins several components may claim at once.
	Shared    bool   `json:"shared"`
	InputOnly bool   `json:"input_only,omitempty"`
	Strapping bool   `json:"strapping,omitempty"`
	Reserved  bool   `json:"reserved,omitempty"`
	Note      string `json:"note,omitempty"`
}

// Has reports whether the pin has the given capability.
func (p BoardPin) Has(c Capability) bool {
	for _, have := range p.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// Label is the human name of the pin, e.g. "GPIO21".
func (p BoardPin) Label() string { return GPIOLabel(p.GPIO) }

// GPIOLabel formats a GPIO number as "GPIO<n>".
func GPIOLabel(gpio int) string { return fmt.Sprintf("GPIO%d", gpio) }

// BusPin binds a logical bus role to a fixed GPIO.
type BusPin struct {
	Role string `json:"role"`
	GPIO int    `json:"gpio"`
}

// Pool names an exclusive pin pool.
type Pool string

const (
	PoolAnalog  Pool = "analog"
	PoolDigital Pool = "digital"
)

// Board is a static pin map. The pools are explicit ascending sequences;
// allocation order never depends on map iteration.
type Board struct {
	Name        string
	pins        []BoardPin
	i2c         []BusPin
	spi         []BusPin
	analogPool  []int
	digitalPool []int
}

var (
	digitalIO = []Capability{CapDigital, CapPWM, CapOneWire}
	adcIO     = []Capability{CapDigital, CapAnalogIn, CapPWM, CapOneWire}
	adcInput  = []Capability{CapDigital, CapAnalogIn}
)

// ESP32DevKit returns the pin map of an ESP32 DevKit V1 (WROOM-32).
func ESP32DevKit() *Board {
	pins := []BoardPin{
		{GPIO: 0, Capabilities: digitalIO, Strapping: true, Note: "BOOT button; must be high at reset"},
		{GPIO: 1, Capabilities: []Capability{CapDigital}, Reserved: true, Note: "UART0 TX (USB serial)"},
		{GPIO: 2, Capabilities: digitalIO, Strapping: true, Note: "onboard LED; must be low for flashing"},
		{GPIO: 3, Capabilities: []Capability{CapDigital}, Reserved: true, Note: "UART0 RX (USB serial)"},
		{GPIO: 4, Capabilities: digitalIO},
		{GPIO: 5, Capabilities: append([]Capability{CapSPIBus}, digitalIO...), Shared: true, Strapping: true, Note: "VSPI CS"},
		{GPIO: 6, Reserved: true, Note: "SPI flash"},
		{GPIO: 7, Reserved: true, Note: "SPI flash"},
		{GPIO: 8, Reserved: true, Note: "SPI flash"},
		{GPIO: 9, Reserved: true, Note: "SPI flash"},
		{GPIO: 10, Reserved: true, Note: "SPI flash"},
		{GPIO: 11, Reserved: true, Note: "SPI flash"},
		{GPIO: 12, Capabilities: digitalIO, Strapping: true, Note: "MTDI; high at boot selects 1.8V flash"},
		{GPIO: 13, Capabilities: digitalIO},
		{GPIO: 14, Capabilities: digitalIO},
		{GPIO: 15, Capabilities: digitalIO, Strapping: true, Note: "MTDO; silences boot log when low"},
		{GPIO: 16, Capabilities: digitalIO},
		{GPIO: 17, Capabilities: digitalIO},
		{GPIO: 18, Capabilities: append([]Capability{CapSPIBus}, digitalIO...), Shared: true, Note: "VSPI SCK"},
		{GPIO: 19, Capabilities: append([]Capability{CapSPIBus}, digitalIO...), Shared: true, Note: "VSPI MISO"},
		{GPIO: 21, Capabilities: append([]Capability{CapI2CBus}, digitalIO...), Shared: true, Note: "I2C SDA"},
		{GPIO: 22, Capabilities: append([]Capability{CapI2CBus}, digitalIO...), Shared: true, Note: "I2C SCL"},
		{GPIO: 23, Capabilities: append([]Capability{CapSPIBus}, digitalIO...), Shared: true, Note: "VSPI MOSI"},
		{GPIO: 25, Capabilities: digitalIO, Note: "DAC1"},
		{GPIO: 26, Capabilities: digitalIO, Note: "DAC2"},
		{GPIO: 27, Capabilities: digitalIO},
		{GPIO: 32, Capabilities: adcIO, Note: "ADC1_CH4"},
		{GPIO: 33, Capabilities: adcIO, Note: "ADC1_CH5"},
		{GPIO: 34, Capabilities: adcInput, InputOnly: true, Note: "ADC1_CH6"},
		{GPIO: 35, Capabilities: adcInput, InputOnly: true, Note: "ADC1_CH7"},
		{GPIO: 36, Capabilities: adcInput, InputOnly: true, Note: "ADC1_CH0 (VP)"},
		{GPIO: 37, Capabilities: adcInput, InputOnly: true, Note: "ADC1_CH1; not broken out on most DevKits"},
		{GPIO: 38, Capabilities: adcInput, InputOnly: true, Note: "ADC1_CH2; not broken out on most DevKits"},
		{GPIO: 39, Capabilities: adcInput, InputOnly: true, Note: "ADC1_CH3 (VN)"},
	}
	return NewBoard("ESP32 DevKit V1", pins,
		[]BusPin{{Role: "SDA", GPIO: 21}, {Role: "SCL", GPIO: 22}},
		[]BusPin{{Role: "SCK", GPIO: 18}, {Role: "MISO", GPIO: 19}, {Role: "MOSI", GPIO: 23}, {Role: "CS", GPIO: 5}},
	)
}

// NewBoard builds a board from its pin table and bus assignments. The
// analog pool is every non-reserved ADC-capable pin; the digital pool is
// every output-capable pin that is not a bus, ADC, strapping or reserved
// pin. Both pools are sorted ascending.
func NewBoard(name string, pins []BoardPin, i2c, spi []BusPin) *Board {
	b := &Board{
		Name: name,
		pins: append([]BoardPin(nil), pins...),
		i2c:  append([]BusPin(nil), i2c...),
		spi:  append([]BusPin(nil), spi...),
	}
	sort.Slice(b.pins, func(i, j int) bool { return b.pins[i].GPIO < b.pins[j].GPIO })

	for _, p := range b.pins {
		switch {
		case p.Reserved:
		case p.Has(CapAnalogIn):
			b.analogPool = append(b.analogPool, p.GPIO)
		case p.Has(CapDigital) && !p.InputOnly && !p.Shared && !p.Strapping:
			b.digitalPool = append(b.digitalPool, p.GPIO)
		}
	}
	return b
}

// Pins returns the full pin table in ascending GPIO order.
func (b *Board) Pins() []BoardPin {
	return append([]BoardPin(nil), b.pins...)
}

// Pin looks up a single GPIO.
func (b *Board) Pin(gpio int) (BoardPin, bool) {
	for _, p := range b.pins {
		if p.GPIO == gpio {
			return p, true
		}
	}
	return BoardPin{}, false
}

// BusPins returns the fixed bus pin set for I2C or SPI, in role order.
// Other interfaces have no bus and return nil.
func (b *Board) BusPins(iface Interface) []BusPin {
	switch iface {
	case InterfaceI2C:
		return append([]BusPin(nil), b.i2c...)
	case InterfaceSPI:
		return append([]BusPin(nil), b.spi...)
	}
	return nil
}

// BusPin returns the GPIO serving a canonical bus role on the given bus.
func (b *Board) BusPin(iface Interface, role string) (int, bool) {
	for _, bp := range b.BusPins(iface) {
		if bp.Role == role {
			return bp.GPIO, true
		}
	}
	return 0, false
}

// Pool returns the ascending GPIO sequence of an exclusive pool.
func (b *Board) Pool(p Pool) []int {
	switch p {
	case PoolAnalog:
		return append([]int(nil), b.analogPool...)
	case PoolDigital:
		return append([]int(nil), b.digitalPool...)
	}
	return nil
}

// PoolRange formats a pool as "GPIO32-GPIO39" for messages.
func (b *Board) PoolRange(p Pool) string {
	pool := b.Pool(p)
	switch len(pool) {
	case 0:
		return "no pins"
	case 1:
		return GPIOLabel(pool[0])
	}
	return GPIOLabel(pool[0]) + "-" + GPIOLabel(pool[len(pool)-1])
}

// Summary is the serializable view of a board served to clients.
type Summary struct {
	Name        string     `json:"name"`
	Pins        []BoardPin `json:"pins"`
	I2C         []BusPin   `json:"i2c"`
	SPI         []BusPin   `json:"spi"`
	AnalogPool  []int      `json:"analog_pool"`
	DigitalPool []int      `json:"digital_pool"`
}

// Summary returns a copy of the board's tables.
func (b *Board) Summary() Summary {
	return Summary{
		Name:        b.Name,
		Pins:        b.Pins(),
		I2C:         b.BusPins(InterfaceI2C),
		SPI:         b.BusPins(InterfaceSPI),
		AnalogPool:  b.Pool(PoolAnalog),
		DigitalPool: b.Pool(PoolDigital),
	}
}

// Allocator hands out exclusive pins for a single resolve pass.
// It is not safe for concurrent use; create one per pass.
type Allocator struct {
	pools map[Pool][]int
	next  map[Pool]int
}

// NewAllocator returns a fresh allocator with every pool full.
func (b *Board) NewAllocator() *Allocator {
	return &Allocator{
		pools: map[Pool][]int{
			PoolAnalog:  b.Pool(PoolAnalog),
			PoolDigital: b.Pool(PoolDigital),
		},
		next: map[Pool]int{},
	}
}

// Next claims the lowest unclaimed GPIO of the pool.
// ok is false once the pool is exhausted.
func (a *Allocator) Next(p Pool) (gpio int, ok bool) {
	pool := a.pools[p]
	i := a.next[p]
	if i >= len(pool) {
		return 0, false
	}
	a.next[p] = i + 1
	return pool[i], true
}

// Remaining reports how many pins of the pool are still free.
func (a *Allocator) Remaining(p Pool) int {
	return len(a.pools[p]) - a.next[p]
}
