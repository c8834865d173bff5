package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/wink-bridge/internal/device"
)

// measurementAttribute holds one point per attribute value change.
const measurementAttribute = "wink_attribute"

// ObserveReplace is a device.Listener writing one point per attribute whose
// current value changed. Writes are non-blocking and batched.
func (c *Client) ObserveReplace(diff device.DiffSet, snap *device.Snapshot) {
	if !c.IsConnected() {
		return
	}
	for _, p := range changePoints(diff, snap) {
		c.writeAPI.WritePoint(p)
	}
}

func changePoints(diff device.DiffSet, snap *device.Snapshot) []*write.Point {
	var points []*write.Point
	at := snap.TakenAt()
	for _, id := range diff.Updated() {
		dd, _ := diff.Device(id)
		d, ok := snap.Device(id)
		if !ok {
			continue
		}
		for _, ch := range dd.Changed() {
			if p := attributePoint(&d, ch, at); p != nil {
				points = append(points, p)
			}
		}
	}
	return points
}

// attributePoint builds the point for one change, or nil when the attribute
// no longer reports a value.
//
// Numbers and booleans share the float field "value" (booleans as 0/1);
// strings go to the "text" field so the field types never conflict.
//
// Example line: wink_attribute,attribute=Level,device=Fan,device_id=2,type=UInt8 value=128
func attributePoint(d *device.Device, ch device.AttributeChange, at time.Time) *write.Point {
	if !ch.New.Present() {
		return nil
	}

	fields := make(map[string]interface{}, 1)
	if s, ok := ch.New.Str(); ok {
		fields["text"] = s
	} else if b, ok := ch.New.Bool(); ok {
		fields["value"] = boolFloat(b)
	} else if n, ok := ch.New.Uint(); ok {
		fields["value"] = float64(n)
	}

	tags := map[string]string{
		"device_id": strconv.FormatUint(uint64(d.ID), 10),
		"attribute": ch.Description,
		"type":      ch.New.Type().String(),
	}
	if d.Name != "" {
		tags["device"] = d.Name
	}
	if d.Interconnect != "" {
		tags["interconnect"] = d.Interconnect
	}

	return write.NewPoint(measurementAttribute, tags, fields, at)
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
