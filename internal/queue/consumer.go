package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/flight-surety/internal/events"
	"github.com/iliyamo/flight-surety/internal/model"
)

// Settler credits insurees for a delayed flight. Satisfied by the ledger.
type Settler interface {
	CreditInsurees(ctx context.Context, callerID uint64, key model.FlightKey) (int, error)
}

// StartSettlementConsumer connects to RabbitMQ, declares the
// flight.status.verdicts queue (durable), and starts consuming finalized
// verdicts. Each verdict is appended to logs/verdicts.log, and verdicts
// that blame the airline trigger insurance credits through the settler
// under the given orchestrator identity. Crediting is idempotent per
// policy, so at-least-once delivery is safe. The function runs a
// reconnect loop and keeps running across broker outages; processing
// errors are logged and the offending message is rejected so the server
// continues operating.
func StartSettlementConsumer(settler Settler, orchestratorID uint64) error {
	url := BrokerURL()

	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("settlement-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn, settler, orchestratorID); err != nil {
			log.Printf("settlement-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeLoop(conn *amqp.Connection, settler Settler, orchestratorID uint64) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("settlement-consumer: set QoS failed: %v", err)
	}

	_, err = ch.QueueDeclare(events.TopicFlightStatusInfo, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(events.TopicFlightStatusInfo, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleVerdict(d.Body, settler, orchestratorID); err != nil {
			log.Printf("settlement-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleVerdict(body []byte, settler Settler, orchestratorID uint64) error {
	var ev events.FlightStatusInfo
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	key := model.FlightKey{AirlineID: ev.AirlineID, Flight: ev.Flight, Timestamp: ev.Timestamp}

	credited := 0
	if ev.StatusCode == model.StatusLateAirline {
		n, err := settler.CreditInsurees(context.Background(), orchestratorID, key)
		if err != nil {
			return fmt.Errorf("credit insurees: %w", err)
		}
		credited = n
	}

	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "verdicts.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] Flight verdict | airline_id=%d | flight=%q | ts=%d | status=%d | policies_credited=%d\n",
		time.Now().UTC().Format(time.RFC3339), ev.AirlineID, ev.Flight, ev.Timestamp, ev.StatusCode, credited)

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
