package hardware

import "strings"

// Fixed power rails.
const (
	Rail3V3 = "3.3V"
	Rail5V  = "5V"
	RailGND = "GND"
)

// RoleClass says where a logical pin role gets its connection from.
type RoleClass int

const (
	RolePower RoleClass = iota
	RoleI2C
	RoleSPI
	RoleAnalog
	RoleDigital
)

// String returns a short lowercase name for the class.
func (c RoleClass) String() string {
	switch c {
	case RolePower:
		return "power"
	case RoleI2C:
		return "i2c"
	case RoleSPI:
		return "spi"
	case RoleAnalog:
		return "analog"
	case RoleDigital:
		return "digital"
	default:
		return "unknown"
	}
}

// roleAliases maps alternative datasheet spellings to canonical roles.
var roleAliases = map[string]string{
	"3V3":  "3.3V",
	"VIN":  "5V",
	"SCLK": "SCK",
	"CLK":  "SCK",
	"SS":   "CS",
	"SDI":  "MOSI",
	"SDO":  "MISO",
	"SO":   "MISO",
	"SI":   "MOSI",
	"A0":   "AOUT",
}

// CanonicalRole upper-cases a role name and folds known aliases.
func CanonicalRole(role string) string {
	r := strings.ToUpper(strings.TrimSpace(role))
	if alias, ok := roleAliases[r]; ok {
		return alias
	}
	return r
}

// ClassifyRole decides how a role of a component with the given interface
// is satisfied. Classification is per role: a SPI display's DC line is a
// digital role even though the component itself is SPI. Bus roles only
// reach the shared bus pins when the component speaks that bus; an HX711
// SCK or an encoder CLK is a plain digital line.
func ClassifyRole(iface Interface, role string) RoleClass {
	switch CanonicalRole(role) {
	case "VCC", "3.3V", "5V", "GND":
		return RolePower
	case "SDA", "SCL":
		if iface == InterfaceI2C {
			return RoleI2C
		}
	case "SCK", "MISO", "MOSI", "CS":
		if iface == InterfaceSPI {
			return RoleSPI
		}
	case "AOUT", "ANALOG":
		return RoleAnalog
	}
	if iface == InterfaceAnalog {
		return RoleAnalog
	}
	return RoleDigital
}

// PowerRail returns the rail a power role connects to. VCC follows the
// component supply, which defaults to 3.3V.
func PowerRail(role, supply string) string {
	switch CanonicalRole(role) {
	case "GND":
		return RailGND
	case "5V":
		return Rail5V
	case "3.3V":
		return Rail3V3
	}
	if supply == Rail5V {
		return Rail5V
	}
	return Rail3V3
}
