package main

import (
	"TraceCorrelator/internal/config"
	"TraceCorrelator/internal/model"
	"bufio"
	"cmp"
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

const segmentSize = 536

// record is one packet seen by a node.
type record struct {
	ts  float64
	key model.FlowKey
	seq int // first byte of a data segment, 0 for acks
	ack int
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "configuration holding the flow list and addressing")
	outputDir := flag.String("o", "traces", "output directory for the per-node traces")
	format := flag.String("format", "text", "output format: 'text' (tcpdump -nn -tt lines) or 'pcap'")
	packetCount := flag.Int("c", 1000, "number of data packets per flow")
	lossRate := flag.Float64("loss", 0.01, "probability that a packet is dropped")
	delay := flag.Float64("delay", 0.010, "mean one-way delay in seconds")
	jitter := flag.Float64("jitter", 0.002, "maximum delay jitter in seconds")
	interval := flag.Float64("interval", 0.001, "time between two data packets of a flow in seconds")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	var write func(path string, records []record) error
	var ext string
	switch *format {
	case "text":
		write = writeText
	case "pcap":
		write, ext = writePcap, ".pcap"
	default:
		log.Fatalf("Invalid format: %s. Use 'text' or 'pcap'.", *format)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	addressing := cfg.Addressing()
	rng := rand.New(rand.NewSource(*seed))

	nodes := make(map[int][]record)
	var sent, received int
	log.Printf("Generating %d packets for each of %d flows into %s...", *packetCount, len(cfg.Correlator.Flows), *outputDir)

	for i, pair := range cfg.Correlator.Flows {
		sig, err := addressing.Signatures(pair)
		if err != nil {
			log.Fatalf("Flow %s: %v", pair, err)
		}

		start := 1.0 + float64(i)*0.0001
		for n := 0; n < *packetCount; n++ {
			seq := 1 + n*segmentSize
			tSend := start + float64(n)**interval
			nodes[pair.Sender] = append(nodes[pair.Sender], record{ts: tSend, key: sig.Data, seq: seq, ack: 1})
			sent++
			if rng.Float64() < *lossRate {
				continue
			}

			tRecv := tSend + *delay + rng.Float64()**jitter
			nodes[pair.Receiver] = append(nodes[pair.Receiver], record{ts: tRecv, key: sig.Data, seq: seq, ack: 1})
			received++

			tAck := tRecv + 0.000050
			ack := record{ts: tAck, key: sig.Ack, ack: seq + segmentSize}
			nodes[pair.Receiver] = append(nodes[pair.Receiver], ack)
			sent++
			if rng.Float64() < *lossRate {
				continue
			}
			ack.ts = tAck + *delay + rng.Float64()**jitter
			nodes[pair.Sender] = append(nodes[pair.Sender], ack)
			received++
		}
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	for node, records := range nodes {
		slices.SortStableFunc(records, func(a, b record) int { return cmp.Compare(a.ts, b.ts) })
		name := fmt.Sprintf(cfg.Correlator.FilePattern, node)
		if ext != "" {
			name = strings.TrimSuffix(name, filepath.Ext(name)) + ext
		}
		if err := write(filepath.Join(*outputDir, name), records); err != nil {
			log.Fatalf("Failed to write trace of node %d: %v", node, err)
		}
	}

	log.Printf("Successfully generated %d traces: %d packets sent, %d received, %d lost.", len(nodes), sent, received, sent-received)
}

func writeText(path string, records []record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, r := range records {
		var err error
		if r.seq > 0 {
			_, err = fmt.Fprintf(w, "%.6f IP %s: Flags [.], seq %d:%d, ack %d, win 65535, length %d\n",
				r.ts, r.key, r.seq, r.seq+segmentSize, r.ack, segmentSize)
		} else {
			_, err = fmt.Fprintf(w, "%.6f IP %s: Flags [.], ack %d, win 65535, length 0\n", r.ts, r.key, r.ack)
		}
		if err != nil {
			return err
		}
	}
	return w.Flush()
}

// writePcap serializes the records as Ethernet/IPv4/TCP packets, so that
// "tcpdump -nn -tt -r" renders them as the text traces the correlator reads.
func writePcap(path string, records []record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	pcapWriter := pcapgo.NewWriter(f)
	if err := pcapWriter.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		return fmt.Errorf("failed to write pcap header: %w", err)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		ComputeChecksums: true,
		FixLengths:       true,
	}
	for _, r := range records {
		src, dst := r.key.Src(), r.key.Dst()
		ethLayer := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
			DstMAC:       net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ipLayer := &layers.IPv4{
			SrcIP:    net.IP(src.Addr.Raw()),
			DstIP:    net.IP(dst.Addr.Raw()),
			Version:  4,
			TTL:      64,
			Protocol: layers.IPProtocolTCP,
		}
		tcpLayer := &layers.TCP{
			SrcPort: layers.TCPPort(binary.BigEndian.Uint16(src.Port.Raw())),
			DstPort: layers.TCPPort(binary.BigEndian.Uint16(dst.Port.Raw())),
			Seq:     uint32(r.seq),
			Ack:     uint32(r.ack),
			ACK:     true,
			Window:  65535,
		}
		tcpLayer.SetNetworkLayerForChecksum(ipLayer)

		var payload gopacket.Payload
		if r.seq > 0 {
			payload = make([]byte, segmentSize)
		}
		if err := gopacket.SerializeLayers(buf, opts, ethLayer, ipLayer, tcpLayer, payload); err != nil {
			return fmt.Errorf("failed to serialize layers: %w", err)
		}

		sec, frac := math.Modf(r.ts)
		ci := gopacket.CaptureInfo{
			Timestamp:     time.Unix(int64(sec), int64(frac*1e9)),
			CaptureLength: len(buf.Bytes()),
			Length:        len(buf.Bytes()),
		}
		if err := pcapWriter.WritePacket(ci, buf.Bytes()); err != nil {
			return fmt.Errorf("failed to write packet: %w", err)
		}
	}
	return nil
}
