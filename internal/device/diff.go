package device

// ChangeKind classifies a device or attribute between two snapshots.
type ChangeKind int

const (
	Unchanged ChangeKind = iota
	New
	Changed
	Removed
)

func (k ChangeKind) String() string {
	switch k {
	case New:
		return "new"
	case Changed:
		return "changed"
	case Removed:
		return "removed"
	default:
		return "unchanged"
	}
}

// MarshalText encodes the kind by name.
func (k ChangeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// AttributeChange records one attribute's transition between snapshots.
type AttributeChange struct {
	ID          uint32     `json:"id"`
	Description string     `json:"description"`
	Kind        ChangeKind `json:"kind"`
	Old         Value      `json:"old"`
	New         Value      `json:"new"`
}

// DeviceDiff records one device's transition between snapshots. Attributes
// lists every attribute of either side: those of the new snapshot in order,
// then the removed ones.
type DeviceDiff struct {
	ID         uint32            `json:"id"`
	Kind       ChangeKind        `json:"kind"`
	Attributes []AttributeChange `json:"attributes"`
}

// Changed returns the attribute changes that are not Unchanged.
func (d DeviceDiff) Changed() []AttributeChange {
	var out []AttributeChange
	for _, c := range d.Attributes {
		if c.Kind != Unchanged {
			out = append(out, c)
		}
	}
	return out
}

// DiffSet is the result of replacing one snapshot with another.
type DiffSet struct {
	Devices []DeviceDiff `json:"devices"`
}

// Device returns the diff for one device.
func (s DiffSet) Device(id uint32) (DeviceDiff, bool) {
	for _, d := range s.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return DeviceDiff{}, false
}

// Empty reports whether nothing changed.
func (s DiffSet) Empty() bool {
	for _, d := range s.Devices {
		if d.Kind != Unchanged {
			return false
		}
	}
	return true
}

// Updated returns ids of devices that are New or Changed, in snapshot order.
func (s DiffSet) Updated() []uint32 {
	var ids []uint32
	for _, d := range s.Devices {
		if d.Kind == New || d.Kind == Changed {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

// Removed returns ids of devices absent from the new snapshot.
func (s DiffSet) Removed() []uint32 {
	var ids []uint32
	for _, d := range s.Devices {
		if d.Kind == Removed {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

// Diff compares two snapshots. Attribute comparison is by current value only;
// a device is Changed when any attribute is not Unchanged or when its name or
// status differ. Either snapshot may be nil.
func Diff(old, cur *Snapshot) DiffSet {
	var set DiffSet

	for _, d := range cur.devices() {
		prev, ok := old.lookup(d.ID)
		if !ok {
			dd := DeviceDiff{ID: d.ID, Kind: New}
			for _, a := range d.Attributes {
				dd.Attributes = append(dd.Attributes, AttributeChange{
					ID: a.ID, Description: a.Description, Kind: New, New: a.Current,
				})
			}
			set.Devices = append(set.Devices, dd)
			continue
		}
		set.Devices = append(set.Devices, diffDevice(prev, d))
	}

	for _, d := range old.devices() {
		if _, ok := cur.lookup(d.ID); ok {
			continue
		}
		dd := DeviceDiff{ID: d.ID, Kind: Removed}
		for _, a := range d.Attributes {
			dd.Attributes = append(dd.Attributes, AttributeChange{
				ID: a.ID, Description: a.Description, Kind: Removed, Old: a.Current,
			})
		}
		set.Devices = append(set.Devices, dd)
	}

	return set
}

func diffDevice(prev, cur *Device) DeviceDiff {
	dd := DeviceDiff{ID: cur.ID, Kind: Unchanged}
	if prev.Name != cur.Name || prev.Status != cur.Status {
		dd.Kind = Changed
	}

	for _, a := range cur.Attributes {
		c := AttributeChange{ID: a.ID, Description: a.Description, New: a.Current}
		if p, ok := prev.Attribute(a.ID); ok {
			c.Old = p.Current
			if !p.Current.Equal(a.Current) {
				c.Kind = Changed
			}
		} else {
			c.Kind = New
		}
		if c.Kind != Unchanged {
			dd.Kind = Changed
		}
		dd.Attributes = append(dd.Attributes, c)
	}

	for _, p := range prev.Attributes {
		if _, ok := cur.Attribute(p.ID); ok {
			continue
		}
		dd.Kind = Changed
		dd.Attributes = append(dd.Attributes, AttributeChange{
			ID: p.ID, Description: p.Description, Kind: Removed, Old: p.Current,
		})
	}

	return dd
}
