package telemetry

import (
	"context"
	"io"
	"time"

	"github.com/WIZARDISHUNGRY/horizon-await/internal/logger"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/pkg/errors"
)

// Replay feeds the UDP payloads of a pcap capture to h. Only packets sent to port are used,
// or every UDP packet when port is 0. With pace set the capture's inter-packet gaps are kept.
// It returns the number of payloads delivered.
func Replay(ctx context.Context, r io.Reader, port int, h DatagramHandler, pace bool) (int, error) {
	log := logger.Entry(ctx)

	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return 0, errors.Wrap(err, "pcapgo.NewReader")
	}

	var (
		delivered int
		last      time.Time
	)
	for {
		if ctx.Err() != nil {
			return delivered, nil
		}
		data, ci, err := pr.ReadPacketData()
		if err == io.EOF {
			log.WithField("payloads", delivered).Info("telemetry replay complete")
			return delivered, nil
		}
		if err != nil {
			return delivered, errors.Wrap(err, "ReadPacketData")
		}

		packet := gopacket.NewPacket(data, pr.LinkType(), gopacket.Default)
		udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}
		if port != 0 && int(udp.DstPort) != port {
			continue
		}

		if pace && !last.IsZero() {
			if gap := ci.Timestamp.Sub(last); gap > 0 {
				timer := time.NewTimer(gap)
				select {
				case <-ctx.Done():
					timer.Stop()
					return delivered, nil
				case <-timer.C:
				}
			}
		}
		last = ci.Timestamp

		h.HandleDatagram(udp.Payload)
		delivered++
	}
}
