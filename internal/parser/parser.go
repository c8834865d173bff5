package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nerrad567/wink-bridge/internal/device"
)

var (
	foundRe      = regexp.MustCompile(`^\s*Found (\d+) devices in`)
	listHeaderRe = regexp.MustCompile(`^\s*MASTERID\s*\|\s*INTERCONNECT\s*\|\s*USERNAME\s*$`)
	deviceRowRe  = regexp.MustCompile(`^\s*(\d+)\s*\|\s*([^|]*?)\s*\|\s*(\S.*?)\s*$`)

	attrHeaderRe = regexp.MustCompile(`^\s*ATTRIBUTE\s*\|\s*DESCRIPTION\s*\|\s*TYPE\s*\|\s*MODE\s*\|\s*GET\s*\|\s*SET\s*$`)
	gangRe       = regexp.MustCompile(`^\s*Gang ID:\s*((?:0x)?[0-9a-fA-F]+)\s*$`)
	typesRe      = regexp.MustCompile(`^\s*Generic/Specific device types:\s*((?:0x)?[0-9a-fA-F]+)/((?:0x)?[0-9a-fA-F]+)\s*$`)
	productRe    = regexp.MustCompile(`^\s*Manufacturer ID:\s*((?:0x)?[0-9a-fA-F]+) Product Type:\s*((?:0x)?[0-9a-fA-F]+) Product Number:\s*((?:0x)?[0-9a-fA-F]+)\s*$`)
	statusRe     = regexp.MustCompile(`^\s*Device is ([^,]+),`)
)

// ListEntry is one row of the device listing.
type ListEntry struct {
	ID           uint32
	Interconnect string
	Name         string
}

// ParseList parses the output of a full device listing.
//
// Rows follow the MASTERID header until the first blank or non-row line.
// Output reporting zero devices without a header is an empty listing.
func ParseList(text string) ([]ListEntry, []Warning, error) {
	lines := splitLines(text)

	header := -1
	foundZero := false
	for i, line := range lines {
		if m := foundRe.FindStringSubmatch(line); m != nil && m[1] == "0" {
			foundZero = true
		}
		if listHeaderRe.MatchString(line) {
			header = i
			break
		}
	}
	if header < 0 {
		if foundZero {
			return []ListEntry{}, nil, nil
		}
		return nil, nil, newParseError(ErrNoListing, text)
	}

	entries := []ListEntry{}
	var warnings []Warning
	for i := header + 1; i < len(lines); i++ {
		m := deviceRowRe.FindStringSubmatch(lines[i])
		if m == nil {
			break
		}
		id, err := strconv.ParseUint(m[1], 10, 32)
		if err != nil {
			warnings = append(warnings, Warning{Line: i + 1, Code: WarnBadRow, Message: fmt.Sprintf("device id %q out of range", m[1])})
			continue
		}
		entries = append(entries, ListEntry{ID: uint32(id), Interconnect: m[2], Name: m[3]})
	}
	return entries, warnings, nil
}

// ParseDescribe parses the detail output for the device with the given id.
//
// Missing header fields leave the corresponding Device fields nil. Rows with
// an unknown type or an undecodable GET/SET value are omitted with a warning.
func ParseDescribe(id uint32, text string) (device.Device, []Warning, error) {
	lines := splitLines(text)

	header := -1
	for i, line := range lines {
		if attrHeaderRe.MatchString(line) {
			header = i
			break
		}
	}
	if header < 0 {
		return device.Device{}, nil, newParseError(ErrNoDeviceTable, text)
	}

	nameLine := -1
	for i := header - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			nameLine = i
			break
		}
	}
	if nameLine < 0 {
		return device.Device{}, nil, newParseError(ErrNoDeviceTable, text)
	}

	d := device.Device{
		ID:         id,
		Name:       strings.TrimSpace(lines[nameLine]),
		Attributes: []device.Attribute{},
	}

	var warnings []Warning
	warn := func(line int, code, format string, args ...any) {
		warnings = append(warnings, Warning{Line: line + 1, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	for i := range nameLine {
		line := lines[i]
		if m := gangRe.FindStringSubmatch(line); m != nil {
			if v, err := numberish(m[1], 32); err == nil {
				g := uint32(v)
				d.GangID = &g
			} else {
				warn(i, WarnBadField, "gang id %q: %v", m[1], err)
			}
			continue
		}
		if m := typesRe.FindStringSubmatch(line); m != nil {
			generic, errG := numberish(m[1], 8)
			specific, errS := numberish(m[2], 8)
			if errG != nil || errS != nil {
				warn(i, WarnBadField, "device types %q/%q out of range", m[1], m[2])
				continue
			}
			g, s := uint8(generic), uint8(specific)
			d.GenericType, d.SpecificType = &g, &s
			continue
		}
		if m := productRe.FindStringSubmatch(line); m != nil {
			mfr, err1 := numberish(m[1], 16)
			kind, err2 := numberish(m[2], 16)
			number, err3 := numberish(m[3], 16)
			if err1 != nil || err2 != nil || err3 != nil {
				warn(i, WarnBadField, "product identity %q out of range", strings.TrimSpace(line))
				continue
			}
			mf, k, n := uint16(mfr), uint16(kind), uint16(number)
			d.ManufacturerID, d.ProductType, d.ProductNumber = &mf, &k, &n
			continue
		}
		if m := statusRe.FindStringSubmatch(line); m != nil {
			d.Status = strings.TrimSpace(m[1])
		}
	}

	for i := header + 1; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			break
		}
		attr, code, err := parseAttributeRow(line)
		if err != nil {
			warn(i, code, "%v", err)
			continue
		}
		d.Attributes = append(d.Attributes, attr)
	}

	return d, warnings, nil
}

// parseAttributeRow parses "id | description | type | mode | get | set".
// The set column may be missing entirely.
func parseAttributeRow(line string) (device.Attribute, string, error) {
	cells := strings.Split(line, "|")
	if len(cells) == 5 {
		cells = append(cells, "")
	}
	if len(cells) != 6 {
		return device.Attribute{}, WarnBadRow, fmt.Errorf("expected 6 columns, got %d", len(cells))
	}
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}

	id, err := strconv.ParseUint(cells[0], 10, 32)
	if err != nil {
		return device.Attribute{}, WarnBadRow, fmt.Errorf("attribute id %q: %w", cells[0], err)
	}
	if cells[1] == "" {
		return device.Attribute{}, WarnBadRow, fmt.Errorf("attribute %d has no description", id)
	}

	typ, err := device.ParseAttributeType(cells[2])
	if err != nil {
		return device.Attribute{}, WarnUnknownType, fmt.Errorf("attribute %d (%s): %w", id, cells[1], err)
	}

	current, err := typ.Decode(cells[4])
	if err != nil {
		return device.Attribute{}, WarnBadValue, fmt.Errorf("attribute %d (%s) GET: %w", id, cells[1], err)
	}
	setting, err := typ.Decode(cells[5])
	if err != nil {
		return device.Attribute{}, WarnBadValue, fmt.Errorf("attribute %d (%s) SET: %w", id, cells[1], err)
	}

	return device.Attribute{
		ID:            uint32(id),
		Description:   cells[1],
		Type:          typ,
		SupportsRead:  strings.Contains(cells[3], "R"),
		SupportsWrite: strings.Contains(cells[3], "W"),
		Current:       current,
		Setting:       setting,
	}, "", nil
}

// numberish parses "0x"-prefixed hex or plain decimal into bitSize bits.
func numberish(s string, bitSize int) (uint64, error) {
	if hex, ok := strings.CutPrefix(s, "0x"); ok {
		return strconv.ParseUint(hex, 16, bitSize)
	}
	return strconv.ParseUint(s, 10, bitSize)
}

func splitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}
