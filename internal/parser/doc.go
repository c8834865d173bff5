// Package parser turns the text printed by the hub's control tool into
// device records. It performs no I/O and is deterministic: the same text
// always yields the same result.
//
// # Listing grammar (aprontest -l)
//
//	listing    = { any-line } [ found-line ] { any-line } list-header { device-row } [ end ]
//	found-line = "Found" count "devices in" rest
//	list-header= "MASTERID" "|" "INTERCONNECT" "|" "USERNAME"
//	device-row = id "|" interconnect "|" name
//	end        = blank-line | any non-row line
//
// Master and control group sections printed after the device table are
// ignored. Output with "Found 0 devices" and no header is an empty listing.
//
// # Detail grammar (aprontest -l -m <id>)
//
//	detail     = { header-field | any-line } name-line attr-header { attr-row } [ blank-line ]
//	header-field =
//	    "Gang ID:" num
//	  | "Generic/Specific device types:" num "/" num
//	  | "Manufacturer ID:" num "Product Type:" num "Product Number:" num
//	  | "Device is" status "," rest
//	name-line  = the last non-blank line before attr-header
//	attr-header= "ATTRIBUTE" "|" "DESCRIPTION" "|" "TYPE" "|" "MODE" "|" "GET" "|" "SET"
//	attr-row   = id "|" description "|" type "|" mode "|" get [ "|" set ]
//	num        = "0x" hex-digits | decimal-digits
//	type       = "BOOL" | "UINT8" | "UINT16" | "UINT32" | "UINT64" | "STRING"
//	mode       = contains "R" for readable, "W" for writable (e.g. "R/W", "R", "W")
//
// Every header field is optional. Older firmware prints no Gang, type or
// product lines at all; such devices simply have nil identity fields.
//
// # Failure model
//
// Only a missing table header is fatal (ParseError wrapping ErrNoListing or
// ErrNoDeviceTable). A row with an unknown type, a malformed id, or a GET/SET
// cell that does not decode as its type is dropped and reported as a Warning.
//
// # Fixtures
//
// testdata/ holds captured tool output: current Z-Wave firmware, the legacy
// Zigbee firmware without Gang data, a Zigbee device exercising every integer
// width, and synthetic damaged tables.
package parser
