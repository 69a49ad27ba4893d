// Package testutil provides shared test fixtures: synthetic packets built
// with gopacket's serialization.
//
// This package centralises fixture construction so pipeline, dissection and
// output tests all exercise the same well-formed records.
package testutil

import (
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/banshee-data/dissect.report/internal/source"
)

// BaseTime is the capture timestamp of the first fixture record; subsequent
// records step forward from it.
var BaseTime = time.Unix(1700000000, 0).UTC()

var (
	srcMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	dstMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
)

// UDPPacket builds an Ethernet/IPv4/UDP packet.
func UDPPacket(t *testing.T, srcIP, dstIP string, srcPort, dstPort int, payload []byte) []byte {
	t.Helper()

	eth := &layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.ParseIP(srcIP),
		DstIP:    net.ParseIP(dstIP),
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(srcPort),
		DstPort: layers.UDPPort(dstPort),
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("set UDP checksum layer: %v", err)
	}
	return serialize(t, eth, ip, udp, gopacket.Payload(payload))
}

// TCPPacket builds an Ethernet/IPv4/TCP packet with the SYN flag set.
func TCPPacket(t *testing.T, srcIP, dstIP string, srcPort, dstPort int) []byte {
	t.Helper()

	eth := &layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.ParseIP(srcIP),
		DstIP:    net.ParseIP(dstIP),
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(dstPort),
		SYN:     true,
		Window:  65535,
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("set TCP checksum layer: %v", err)
	}
	return serialize(t, eth, ip, tcp)
}

// FragmentPacket builds an IPv4 fragment of a UDP datagram. fragOffset is in
// 8-byte units; more marks non-final fragments.
func FragmentPacket(t *testing.T, srcIP, dstIP string, ipID uint16, fragOffset uint16, more bool, payload []byte) []byte {
	t.Helper()

	eth := &layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	var flags layers.IPv4Flag
	if more {
		flags = layers.IPv4MoreFragments
	}
	ip := &layers.IPv4{
		Version:    4,
		IHL:        5,
		TTL:        64,
		Protocol:   layers.IPProtocolUDP,
		Id:         ipID,
		Flags:      flags,
		FragOffset: fragOffset,
		SrcIP:      net.ParseIP(srcIP),
		DstIP:      net.ParseIP(dstIP),
	}
	return serialize(t, eth, ip, gopacket.Payload(payload))
}

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		t.Fatalf("serialize packet: %v", err)
	}
	return buf.Bytes()
}

// Records wraps raw packets as source records with stepped timestamps and
// offsets, ready for a MockSource.
func Records(packets ...[]byte) []source.Record {
	recs := make([]source.Record, len(packets))
	offset := int64(24) // past the pcap file header
	for i, p := range packets {
		recs[i] = source.Record{
			Data:   p,
			Time:   BaseTime.Add(time.Duration(i) * time.Millisecond),
			CapLen: len(p),
			Len:    len(p),
			Offset: offset,
		}
		offset += int64(len(p)) + 16
	}
	return recs
}
