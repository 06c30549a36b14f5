package render

import "github.com/banshee-data/canwatch/internal/canbus"

// moduleNames maps the well-known module addresses seen in the low byte of
// extended network-management identifiers to their short names. Purely
// decorative; unknown addresses simply render without a label.
var moduleNames = map[byte]string{
	0x01: "BCM",
	0x11: "ECM",
	0x1b: "MUM",
	0x28: "SAS",
	0x29: "CCM",
	0x2e: "PSM",
	0x40: "CEM",
	0x43: "DDM",
	0x45: "PDM",
	0x46: "REM",
	0x47: "UEM",
	0x48: "SWM",
	0x50: "CEM",
	0x51: "DIM",
	0x52: "AEM",
	0x58: "SRS",
	0x60: "AUM",
	0x62: "RTI",
	0x64: "PHM",
	0x6e: "TCM",
}

// ModuleName returns the decorative module label for an identifier, or ""
// when none is known. Only extended identifiers carry a module address.
func ModuleName(id canbus.Identifier) string {
	if !id.Extended() {
		return ""
	}
	return moduleNames[byte(id.Value())]
}
