package dissect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/banshee-data/dissect.report/internal/columns"
	"github.com/banshee-data/dissect.report/internal/frames"
	"github.com/banshee-data/dissect.report/internal/source"
)

// GoPacketEngine dissects records with gopacket's layer decoders. It keeps a
// per-run IPv4 fragment table so continuation fragments can declare the frame
// numbers of their predecessors; the table is a sequential-scan cache and is
// flushed between passes.
type GoPacketEngine struct {
	linkType layers.LinkType
	req      Request

	// frags maps an IPv4 fragment key to the frame numbers of fragments
	// seen so far for that datagram.
	frags map[string][]uint32

	// pkt is per-frame scratch, released by Reset.
	pkt gopacket.Packet
}

// NewGoPacketEngine creates an engine for records of the given link type.
func NewGoPacketEngine(linkType layers.LinkType) *GoPacketEngine {
	return &GoPacketEngine{
		linkType: linkType,
		frags:    make(map[string][]uint32),
	}
}

// Prime registers the interest set for subsequent dissections.
func (e *GoPacketEngine) Prime(req Request) {
	e.req = req
}

// Reset drops the per-frame decode state.
func (e *GoPacketEngine) Reset() {
	e.pkt = nil
}

// FlushSequentialCaches clears the fragment table once a forward scan is
// finished.
func (e *GoPacketEngine) FlushSequentialCaches() {
	e.frags = make(map[string][]uint32)
}

// RetractFrame removes a dropped frame's number from the fragment table so a
// reused number cannot alias a different frame.
func (e *GoPacketEngine) RetractFrame(num uint32) {
	for key, nums := range e.frags {
		kept := nums[:0]
		for _, n := range nums {
			if n != num {
				kept = append(kept, n)
			}
		}
		if len(kept) == 0 {
			delete(e.frags, key)
		} else {
			e.frags[key] = kept
		}
	}
}

// Dissect decodes one record, optionally filling summary columns and
// building a field tree per the primed request.
func (e *GoPacketEngine) Dissect(rec *source.Record, f *frames.Frame, row *columns.Row) (*Result, error) {
	e.pkt = gopacket.NewPacket(rec.Data, e.linkType, gopacket.DecodeOptions{Lazy: false, NoCopy: true})

	res := &Result{
		Frame:  f,
		Fields: make(map[string][]string),
	}

	res.addField("frame.number", strconv.FormatUint(uint64(f.Num), 10))
	res.addField("frame.len", strconv.Itoa(f.Len))
	res.addField("frame.cap_len", strconv.Itoa(f.CapLen))
	res.addField("frame.time_relative", formatElapsed(f))

	for _, l := range e.pkt.Layers() {
		name := strings.ToLower(l.LayerType().String())
		if name == "decodefailure" {
			continue
		}
		res.Protocols = append(res.Protocols, name)
		switch lay := l.(type) {
		case *layers.Ethernet:
			res.Protocols = append(res.Protocols, "eth")
			res.addField("eth.src", lay.SrcMAC.String())
			res.addField("eth.dst", lay.DstMAC.String())
			res.addField("eth.type", fmt.Sprintf("0x%04x", uint16(lay.EthernetType)))
		case *layers.IPv4:
			res.Protocols = append(res.Protocols, "ip")
			res.addField("ip.src", lay.SrcIP.String())
			res.addField("ip.dst", lay.DstIP.String())
			res.addField("ip.proto", strconv.Itoa(int(lay.Protocol)))
			res.addField("ip.ttl", strconv.Itoa(int(lay.TTL)))
			res.addField("ip.id", fmt.Sprintf("0x%04x", lay.Id))
			e.trackFragment(lay, f, res)
		case *layers.IPv6:
			res.Protocols = append(res.Protocols, "ip")
			res.addField("ip.src", lay.SrcIP.String())
			res.addField("ip.dst", lay.DstIP.String())
			res.addField("ipv6.src", lay.SrcIP.String())
			res.addField("ipv6.dst", lay.DstIP.String())
		case *layers.TCP:
			res.addField("tcp.srcport", strconv.Itoa(int(lay.SrcPort)))
			res.addField("tcp.dstport", strconv.Itoa(int(lay.DstPort)))
			res.addField("tcp.seq", strconv.FormatUint(uint64(lay.Seq), 10))
			res.addField("tcp.flags", tcpFlags(lay))
		case *layers.UDP:
			res.addField("udp.srcport", strconv.Itoa(int(lay.SrcPort)))
			res.addField("udp.dstport", strconv.Itoa(int(lay.DstPort)))
			res.addField("udp.length", strconv.Itoa(int(lay.Length)))
		case *layers.ICMPv4:
			res.Protocols = append(res.Protocols, "icmp")
			res.addField("icmp.type", strconv.Itoa(int(lay.TypeCode.Type())))
			res.addField("icmp.code", strconv.Itoa(int(lay.TypeCode.Code())))
		case *layers.ARP:
			res.addField("arp.opcode", strconv.Itoa(int(lay.Operation)))
		}
	}

	if e.req.NeedTree {
		res.Tree = e.buildTree(f, res)
	}
	if row != nil {
		e.fillColumns(f, res, row)
	}
	return res, nil
}

func (r *Result) addField(name, value string) {
	r.Fields[name] = append(r.Fields[name], value)
}

// trackFragment records IPv4 fragment lineage. A continuation fragment
// depends on every earlier fragment of the same datagram; the key is
// released once the final fragment arrives.
func (e *GoPacketEngine) trackFragment(ip *layers.IPv4, f *frames.Frame, res *Result) {
	more := ip.Flags&layers.IPv4MoreFragments != 0
	if !more && ip.FragOffset == 0 {
		return // not fragmented
	}

	key := fmt.Sprintf("%s|%s|%d|%d", ip.SrcIP, ip.DstIP, ip.Protocol, ip.Id)
	if ip.FragOffset > 0 {
		if earlier := e.frags[key]; len(earlier) > 0 {
			res.DependsOn = append(res.DependsOn, earlier...)
			res.Dependent = true
		}
	}
	if more {
		e.frags[key] = append(e.frags[key], f.Num)
	} else {
		delete(e.frags, key)
	}
	res.addField("ip.frag_offset", strconv.Itoa(int(ip.FragOffset)))
}

func (e *GoPacketEngine) fillColumns(f *frames.Frame, res *Result, row *columns.Row) {
	row.Reset()
	for i, c := range row.Cols {
		switch c.Kind {
		case columns.Number:
			row.Set(i, strconv.FormatUint(uint64(f.Num), 10))
		case columns.Time:
			row.Set(i, formatElapsed(f))
		case columns.Source:
			row.Set(i, e.address(res, c.Class, true))
		case columns.Destination:
			row.Set(i, e.address(res, c.Class, false))
		case columns.Other:
			switch c.Title {
			case "Protocol":
				row.Set(i, protocolName(res))
			case "Length":
				row.Set(i, strconv.Itoa(f.Len))
			case "Info":
				row.Set(i, infoText(res))
			}
		}
	}
}

func (e *GoPacketEngine) address(res *Result, class columns.AddrClass, src bool) string {
	netField, linkField := "ip.dst", "eth.dst"
	if src {
		netField, linkField = "ip.src", "eth.src"
	}
	switch class {
	case columns.ClassDataLink:
		return res.FirstField(linkField)
	case columns.ClassNetwork:
		return res.FirstField(netField)
	default:
		if v := res.FirstField(netField); v != "" {
			return v
		}
		return res.FirstField(linkField)
	}
}

var protoDisplay = map[string]string{
	"ethernet": "ETH",
	"ipv4":     "IPv4",
	"ipv6":     "IPv6",
	"tcp":      "TCP",
	"udp":      "UDP",
	"icmpv4":   "ICMP",
	"arp":      "ARP",
}

// protocolName picks the highest-layer protocol for the summary column.
func protocolName(res *Result) string {
	for i := len(res.Protocols) - 1; i >= 0; i-- {
		p := res.Protocols[i]
		if p == "payload" || p == "eth" || p == "ip" || p == "icmp" {
			continue
		}
		if disp, ok := protoDisplay[p]; ok {
			return disp
		}
		return strings.ToUpper(p)
	}
	return ""
}

func infoText(res *Result) string {
	if off := res.FirstField("ip.frag_offset"); off != "" && off != "0" {
		return fmt.Sprintf("Fragmented IP protocol (proto=%s, off=%s, id=%s)",
			res.FirstField("ip.proto"), off, res.FirstField("ip.id"))
	}
	if res.HasProtocol("tcp") {
		return fmt.Sprintf("%s -> %s [%s] Seq=%s",
			res.FirstField("tcp.srcport"), res.FirstField("tcp.dstport"),
			res.FirstField("tcp.flags"), res.FirstField("tcp.seq"))
	}
	if res.HasProtocol("udp") {
		return fmt.Sprintf("%s -> %s Len=%s",
			res.FirstField("udp.srcport"), res.FirstField("udp.dstport"),
			res.FirstField("udp.length"))
	}
	if res.HasProtocol("icmp") {
		return fmt.Sprintf("ICMP type=%s code=%s",
			res.FirstField("icmp.type"), res.FirstField("icmp.code"))
	}
	return protocolName(res)
}

func (e *GoPacketEngine) buildTree(f *frames.Frame, res *Result) *Node {
	root := &Node{Name: "packet", Show: fmt.Sprintf("Frame %d", f.Num)}

	fr := root.Add("frame", fmt.Sprintf("Frame %d: %d bytes on wire, %d bytes captured", f.Num, f.Len, f.CapLen))
	fr.Add("frame.number", fmt.Sprintf("Frame Number: %d", f.Num))
	fr.Add("frame.offset", fmt.Sprintf("File Offset: %d", f.Offset))
	fr.Add("frame.len", fmt.Sprintf("Frame Length: %d", f.Len))
	fr.Add("frame.time_relative", fmt.Sprintf("Time since first frame: %s", formatElapsed(f)))

	if v := res.FirstField("eth.src"); v != "" {
		n := root.Add("eth", fmt.Sprintf("Ethernet II, Src: %s, Dst: %s", v, res.FirstField("eth.dst")))
		n.Add("eth.src", "Source: "+v)
		n.Add("eth.dst", "Destination: "+res.FirstField("eth.dst"))
		n.Add("eth.type", "Type: "+res.FirstField("eth.type"))
	}
	if v := res.FirstField("ip.src"); v != "" {
		n := root.Add("ip", fmt.Sprintf("Internet Protocol, Src: %s, Dst: %s", v, res.FirstField("ip.dst")))
		n.Add("ip.src", "Source Address: "+v)
		n.Add("ip.dst", "Destination Address: "+res.FirstField("ip.dst"))
		if ttl := res.FirstField("ip.ttl"); ttl != "" {
			n.Add("ip.ttl", "Time to Live: "+ttl)
		}
		if off := res.FirstField("ip.frag_offset"); off != "" {
			n.Add("ip.frag_offset", "Fragment Offset: "+off)
		}
	}
	if v := res.FirstField("tcp.srcport"); v != "" {
		n := root.Add("tcp", fmt.Sprintf("Transmission Control Protocol, Src Port: %s, Dst Port: %s", v, res.FirstField("tcp.dstport")))
		n.Add("tcp.srcport", "Source Port: "+v)
		n.Add("tcp.dstport", "Destination Port: "+res.FirstField("tcp.dstport"))
		n.Add("tcp.flags", "Flags: "+res.FirstField("tcp.flags"))
	}
	if v := res.FirstField("udp.srcport"); v != "" {
		n := root.Add("udp", fmt.Sprintf("User Datagram Protocol, Src Port: %s, Dst Port: %s", v, res.FirstField("udp.dstport")))
		n.Add("udp.srcport", "Source Port: "+v)
		n.Add("udp.dstport", "Destination Port: "+res.FirstField("udp.dstport"))
		n.Add("udp.length", "Length: "+res.FirstField("udp.length"))
	}
	return root
}

func tcpFlags(t *layers.TCP) string {
	var flags []string
	if t.SYN {
		flags = append(flags, "SYN")
	}
	if t.ACK {
		flags = append(flags, "ACK")
	}
	if t.FIN {
		flags = append(flags, "FIN")
	}
	if t.RST {
		flags = append(flags, "RST")
	}
	if t.PSH {
		flags = append(flags, "PSH")
	}
	if t.URG {
		flags = append(flags, "URG")
	}
	return strings.Join(flags, ",")
}

func formatElapsed(f *frames.Frame) string {
	return fmt.Sprintf("%.6f", f.Elapsed.Seconds())
}
