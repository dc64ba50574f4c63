package publisher

import (
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

type NATSPublisher struct {
	nc            *nats.Conn
	subjectPrefix string
	logSubjects   bool
	metrics       PublisherMetrics
}

type PublisherMetrics interface {
	PublishedInc(sink string)
	PublishErrInc(sink string)
	PublishObserve(d time.Duration)
	SetConnected(sink string, connected bool)
}

func NewNATSPublisher(url, subjectPrefix string, logSubjects bool, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("route-replay"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.SetConnected("nats", false)
			}
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.SetConnected("nats", true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.SetConnected("nats", false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.SetConnected("nats", true)
	}
	return &NATSPublisher{nc: nc, subjectPrefix: subjectPrefix, logSubjects: logSubjects, metrics: m}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// Subject returns <prefix>.<vehicle>.<session>.
func (p *NATSPublisher) Subject(vehicleID, sessionID string) string {
	parts := []string{subjectToken(vehicleID), subjectToken(sessionID)}
	if p.subjectPrefix != "" {
		parts = append([]string{strings.Trim(p.subjectPrefix, ".")}, parts...)
	}
	return strings.Join(parts, ".")
}

func (p *NATSPublisher) PublishFrame(msg FrameMessage) error {
	subject := p.Subject(msg.VehicleID, msg.SessionID)
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if p.logSubjects {
		log.Printf("nats publish subject=%s index=%d", subject, msg.Index)
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	observe(p.metrics, "nats", start, err)
	return err
}

func observe(m PublisherMetrics, sink string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.PublishObserve(time.Since(start))
	if err != nil {
		m.PublishErrInc(sink)
	} else {
		m.PublishedInc(sink)
	}
}
