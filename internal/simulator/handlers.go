package simulator

import (
	"slices"
	"time"

	"github.com/muurk/signctl/internal/protocol"
)

func (c *Controller) statusReply() *protocol.SignStatusReply {
	r := &protocol.SignStatusReply{
		Online:    true,
		Timestamp: protocol.NewDateTime(c.now()),
	}
	for _, gid := range c.groupIDs() {
		for _, sid := range c.signIDs(gid) {
			r.Signs = append(r.Signs, *c.signs[sid])
			if c.signs[sid].ErrorCode != 0 {
				r.ControllerErrorCode = c.signs[sid].ErrorCode
			}
		}
	}
	r.ControllerChecksum = protocol.CRC(protocol.BuildSignConfigurationReply(c.config).Data)
	return r
}

func (c *Controller) systemReset(b []byte) protocol.Request {
	if len(b) != 2 {
		return reject(protocol.MISystemReset, appErrSyntax)
	}
	if !protocol.ResetLevel(b[1]).Valid() {
		return reject(protocol.MISystemReset, appErrSyntax)
	}
	level := protocol.ResetLevel(b[1])

	for _, sid := range c.groupSigns(b[0]) {
		s := c.signs[sid]
		s.FrameID, s.FrameRevision = 0, 0
		s.MessageID, s.MessageRevision = 0, 0
		s.PlanID, s.PlanRevision = 0, 0
	}
	if level >= protocol.ResetLevel2 {
		c.enabled = nil
	}
	if level >= protocol.ResetLevel3 {
		c.frames = make(map[byte]*protocol.TextFrame)
		c.messages = make(map[byte]*protocol.MessageDefinition)
	}
	if level == protocol.ResetLevelFactory {
		c.plans = make(map[byte]*protocol.StoredPlan)
		c.faults = nil
		c.clockOff = 0
	}
	return protocol.BuildAckMessage()
}

// groupSigns returns the signs of group gid, or of every group when gid is 0.
func (c *Controller) groupSigns(gid byte) []byte {
	var ids []byte
	for _, g := range c.config.Groups {
		if gid != 0 && g.GroupID != gid {
			continue
		}
		for id := range g.Signs {
			ids = append(ids, id)
		}
	}
	return ids
}

func (c *Controller) updateTime(f *protocol.Frame) protocol.Request {
	b, _ := protocol.DataBytes(f)
	if len(b) != 7 {
		return reject(f.MI, appErrSyntax)
	}
	dt := protocol.DateTime{Day: b[0], Month: b[1], Year: uint16(b[2])<<8 | uint16(b[3]), Hour: b[4], Minute: b[5], Second: b[6]}
	if !dt.Valid() {
		return reject(f.MI, appErrSyntax)
	}
	c.clockOff = dt.Time().Sub(c.opts.Now().UTC().Truncate(time.Second))
	return protocol.BuildAckMessage()
}

// capacity is the number of characters the largest text sign can show.
func (c *Controller) capacity() int {
	largest := 0
	for _, g := range c.config.Groups {
		for _, s := range g.Signs {
			if s.Type != protocol.SignTypeText {
				continue
			}
			largest = max(largest, int(s.Width)*int(s.Height))
		}
	}
	return largest
}

func (c *Controller) setTextFrame(f *protocol.Frame) protocol.Request {
	msg, err := protocol.ParseMessage(f)
	if err != nil {
		return reject(f.MI, appErrSyntax)
	}
	tf := msg.(*protocol.TextFrame)
	if !tf.CRCValid() {
		return reject(f.MI, appErrChecksum)
	}
	if len(tf.Text) > c.capacity() {
		return reject(f.MI, appErrFrameTooLarge)
	}
	c.frames[tf.FrameID] = tf
	return protocol.BuildAckMessage()
}

func (c *Controller) setMessage(f *protocol.Frame) protocol.Request {
	msg, err := protocol.ParseMessage(f)
	if err != nil {
		return reject(f.MI, appErrSyntax)
	}
	m := msg.(*protocol.MessageDefinition)
	if len(m.Entries) == 0 {
		return reject(f.MI, appErrSyntax)
	}
	for _, e := range m.Entries {
		if _, ok := c.frames[e.FrameID]; !ok {
			return reject(f.MI, appErrUndefined)
		}
	}
	c.messages[m.MessageID] = m
	return protocol.BuildAckMessage()
}

func (c *Controller) displayFrame(b []byte) protocol.Request {
	if len(b) != 2 {
		return reject(protocol.MISignDisplayFrame, appErrSyntax)
	}
	gid, fid := b[0], b[1]
	g, ok := c.config.Groups[gid]
	if !ok {
		return reject(protocol.MISignDisplayFrame, appErrUndefinedDevice)
	}
	var rev byte
	if fid != 0 {
		tf, ok := c.frames[fid]
		if !ok {
			return reject(protocol.MISignDisplayFrame, appErrUndefined)
		}
		rev = tf.Revision
	}
	for id := range g.Signs {
		s := c.signs[id]
		s.FrameID, s.FrameRevision = fid, rev
		s.MessageID, s.MessageRevision = 0, 0
	}
	return protocol.BuildAckMessage()
}

func (c *Controller) displayMessage(b []byte) protocol.Request {
	if len(b) != 2 {
		return reject(protocol.MISignDisplayMessage, appErrSyntax)
	}
	g, ok := c.config.Groups[b[0]]
	if !ok {
		return reject(protocol.MISignDisplayMessage, appErrUndefinedDevice)
	}
	m, ok := c.messages[b[1]]
	if !ok {
		return reject(protocol.MISignDisplayMessage, appErrUndefined)
	}
	first := m.Entries[0].FrameID
	var rev byte
	if tf, ok := c.frames[first]; ok {
		rev = tf.Revision
	}
	for id := range g.Signs {
		s := c.signs[id]
		s.MessageID, s.MessageRevision = m.MessageID, m.Revision
		s.FrameID, s.FrameRevision = first, rev
	}
	return protocol.BuildAckMessage()
}

func (c *Controller) displayAtomic(b []byte) protocol.Request {
	if len(b) < 2 || len(b) != 2+2*int(b[1]) {
		return reject(protocol.MISignDisplayAtomicFrames, appErrSyntax)
	}
	g, ok := c.config.Groups[b[0]]
	if !ok {
		return reject(protocol.MISignDisplayAtomicFrames, appErrUndefinedDevice)
	}
	pairs := b[2:]
	// Validate everything before changing any sign.
	for i := 0; i < len(pairs); i += 2 {
		if _, ok := g.Signs[pairs[i]]; !ok {
			return reject(protocol.MISignDisplayAtomicFrames, appErrUndefinedDevice)
		}
		if _, ok := c.frames[pairs[i+1]]; !ok && pairs[i+1] != 0 {
			return reject(protocol.MISignDisplayAtomicFrames, appErrUndefined)
		}
	}
	for i := 0; i < len(pairs); i += 2 {
		s := c.signs[pairs[i]]
		s.FrameID, s.FrameRevision = pairs[i+1], 0
		if tf, ok := c.frames[pairs[i+1]]; ok {
			s.FrameRevision = tf.Revision
		}
		s.MessageID, s.MessageRevision = 0, 0
	}
	return protocol.BuildAckMessage()
}

func (c *Controller) enablePlan(b []byte) protocol.Request {
	if len(b) != 2 {
		return reject(protocol.MIEnablePlan, appErrSyntax)
	}
	ref := protocol.PlanRef{GroupID: b[0], PlanID: b[1]}
	if _, ok := c.config.Groups[ref.GroupID]; !ok {
		return reject(protocol.MIEnablePlan, appErrUndefinedDevice)
	}
	p, ok := c.plans[ref.PlanID]
	if !ok {
		return reject(protocol.MIEnablePlan, appErrUndefined)
	}
	for _, e := range c.enabled {
		if e == ref {
			return reject(protocol.MIEnablePlan, appErrPlanEnabled)
		}
	}
	c.enabled = append(c.enabled, ref)
	for id := range c.config.Groups[ref.GroupID].Signs {
		c.signs[id].PlanID, c.signs[id].PlanRevision = p.PlanID, p.Revision
	}
	return protocol.BuildAckMessage()
}

func (c *Controller) disablePlan(b []byte) protocol.Request {
	if len(b) != 2 {
		return reject(protocol.MIDisablePlan, appErrSyntax)
	}
	ref := protocol.PlanRef{GroupID: b[0], PlanID: b[1]}
	for i, e := range c.enabled {
		if e == ref {
			c.enabled = append(c.enabled[:i], c.enabled[i+1:]...)
			for id := range c.config.Groups[ref.GroupID].Signs {
				c.signs[id].PlanID, c.signs[id].PlanRevision = 0, 0
			}
			return protocol.BuildAckMessage()
		}
	}
	return reject(protocol.MIDisablePlan, appErrPlanNotEnabled)
}

func (c *Controller) setDimming(b []byte) protocol.Request {
	if len(b) < 1 || len(b) != 1+3*int(b[0]) {
		return reject(protocol.MISignSetDimmingLevel, appErrSyntax)
	}
	for i := 1; i < len(b); i += 3 {
		if _, ok := c.config.Groups[b[i]]; !ok {
			return reject(protocol.MISignSetDimmingLevel, appErrUndefinedDevice)
		}
		if b[i+1] != 0 && (b[i+2] < 1 || b[i+2] > protocol.MaxDimmingLevel) {
			return reject(protocol.MISignSetDimmingLevel, appErrDimming)
		}
	}
	for i := 1; i < len(b); i += 3 {
		c.dimming[b[i]] = protocol.DimmingSetting{GroupID: b[i], Manual: b[i+1] != 0, Level: b[i+2]}
	}
	return protocol.BuildAckMessage()
}

func (c *Controller) switchGroups(mi protocol.MICode, b []byte, apply func(gid byte, on bool)) protocol.Request {
	if len(b) < 1 || len(b) != 1+2*int(b[0]) {
		return reject(mi, appErrSyntax)
	}
	for i := 1; i < len(b); i += 2 {
		if _, ok := c.config.Groups[b[i]]; !ok {
			return reject(mi, appErrUndefinedDevice)
		}
	}
	for i := 1; i < len(b); i += 2 {
		apply(b[i], b[i+1] != 0)
	}
	return protocol.BuildAckMessage()
}

func (c *Controller) requestStored(b []byte) protocol.Request {
	mi := protocol.MISignRequestStoredFrameMessagePlan
	if len(b) != 2 {
		return reject(mi, appErrSyntax)
	}
	id := b[1]
	switch protocol.StoredKind(b[0]) {
	case protocol.StoredKindFrame:
		if tf, ok := c.frames[id]; ok {
			req, err := protocol.BuildSignSetTextFrame(tf)
			if err == nil {
				return req
			}
		}
	case protocol.StoredKindMessage:
		if m, ok := c.messages[id]; ok {
			req, err := protocol.BuildSignSetMessage(m)
			if err == nil {
				return req
			}
		}
	case protocol.StoredKindPlan:
		if p, ok := c.plans[id]; ok {
			return protocol.BuildStoredPlan(p)
		}
	default:
		return reject(mi, appErrSyntax)
	}
	return reject(mi, appErrUndefined)
}

func (c *Controller) extendedStatus() protocol.Request {
	status := c.statusReply()
	return protocol.BuildExtendedStatusReply(&protocol.ExtendedStatus{
		Online:              true,
		ManufacturerCode:    c.opts.ManufacturerCode,
		Timestamp:           status.Timestamp,
		ControllerErrorCode: status.ControllerErrorCode,
		Raw:                 protocol.AsciiToHex("SIM"),
	})
}

func (c *Controller) groupIDs() []byte {
	return sortedIDs(c.config.Groups)
}

func (c *Controller) signIDs(gid byte) []byte {
	return sortedIDs(c.config.Groups[gid].Signs)
}

func sortedIDs[V any](m map[byte]V) []byte {
	ids := make([]byte, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
